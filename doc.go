// Package uasub implements the server-side subscription publish engine of
// an OPC UA style monitoring service.
//
// A subscription periodically samples the queues of its monitored items,
// batches the queued value changes into sequence-numbered notification
// messages, pairs each message with a publish request the client queued in
// advance, and keeps sent messages in a bounded retransmission queue until
// the client acknowledges them.
//
// This package implements the subscription model of OPC UA Part 4,
// Sections 5.13 and 5.12. Wire encoding, secure channel encryption and
// session establishment are out of scope; the engine talks to them
// through the SecureChannel interface and the Session type.
//
// # Features
//
//   - Publish state machine with keep-alive, late state and lifetime expiry
//   - Bounded retransmission queue with ack-driven and age-based removal
//   - Republish of buffered notification messages
//   - Monitored item value queues with sampling-rate coalescing
//   - Parameter revision against configurable server limits
//   - Pluggable scheduler, logger, metrics and storage codec
//
// # Server
//
// Use the high-level Server API to run the engine:
//
//	srv := uasub.NewServer(
//	    uasub.WithLogger(uasub.NewStdLogger(os.Stderr, uasub.LogLevelInfo)),
//	    uasub.WithMaxRetransmissionQueueSize(32),
//	)
//	defer srv.Close()
//
// Sessions are created by the session layer and handed to the engine:
//
//	session := uasub.NewSession(channel)
//	sub, revised, result := srv.CreateSubscription(session, uasub.SubscriptionParameters{
//	    PublishingInterval: 500 * time.Millisecond,
//	    MaxKeepAliveCount:  10,
//	    LifetimeCount:      30,
//	    PublishingEnabled:  true,
//	})
//
// # Monitored items
//
// Monitored items produce the values a subscription publishes. The
// sampling side enqueues; the publish tick drains:
//
//	item, _, _ := srv.CreateMonitoredItem(session, sub.ID(), uasub.MonitoredItemParameters{
//	    ClientHandle:  1,
//	    QueueSize:     10,
//	    DiscardOldest: true,
//	})
//	item.Enqueue(uasub.DataValue{Value: 23.5, SourceTimestamp: time.Now()})
//
// # Publish requests
//
// Clients pre-queue publish requests so the server has a response
// envelope ready when data is due. The request layer applies the
// acknowledgements and queues the shell in one call:
//
//	results := srv.Publish(session, requestID, acks)
//
// # Scheduling
//
// Publish callbacks run on a Scheduler. The default TimerScheduler
// serializes all callbacks on one dispatch goroutine; request handlers
// can join that loop through Dispatch. Tests use ManualScheduler to fire
// ticks deterministically.
//
// # Logging and metrics
//
// Implement the Logger interface for structured logging:
//
//	logger := uasub.NewStdLogger(os.Stdout, uasub.LogLevelInfo)
//	logger.Info("subscription created", uasub.LogFields{"subscription_id": 7})
//
// Use the built-in metrics collectors for operational metrics:
//
//	metrics := uasub.NewMemoryMetrics()
//	srv := uasub.NewServer(uasub.WithMetrics(metrics))
package uasub
