package uasub

import (
	"time"
)

// Server is the subscription publish engine. It owns the subscription
// registry, revises client-requested parameters, drives the publish
// callbacks through the scheduler and answers the subscription services.
//
// Service calls and publish ticks are expected to run on the same serial
// dispatcher (see Scheduler); the engine does not guard subscription
// counters with locks.
type Server struct {
	logger        Logger
	metrics       Metrics
	engineMetrics *EngineMetrics
	scheduler     Scheduler
	ownScheduler  *TimerScheduler
	codec         NotificationCodec
	limits        SubscriptionLimits

	maxRetransmissionQueueSize int
	maxSubscriptionsPerSession int

	registry *SubscriptionRegistry
}

// NewServer creates a subscription engine with the given options. When no
// scheduler is provided the server starts its own TimerScheduler, which
// Close shuts down again.
func NewServer(opts ...ServerOption) *Server {
	config := defaultServerConfig()
	for _, opt := range opts {
		opt(config)
	}

	s := &Server{
		logger:                     config.logger,
		metrics:                    config.metrics,
		engineMetrics:              NewEngineMetrics(config.metrics),
		scheduler:                  config.scheduler,
		codec:                      config.codec,
		limits:                     config.limits,
		maxRetransmissionQueueSize: config.maxRetransmissionQueueSize,
		maxSubscriptionsPerSession: config.maxSubscriptionsPerSession,
		registry:                   NewSubscriptionRegistry(),
	}
	if s.scheduler == nil {
		s.ownScheduler = NewTimerScheduler()
		s.scheduler = s.ownScheduler
	}
	return s
}

// Close shuts down the server's own scheduler, if it started one.
func (s *Server) Close() {
	if s.ownScheduler != nil {
		s.ownScheduler.Close()
	}
}

// Registry returns the subscription registry.
func (s *Server) Registry() *SubscriptionRegistry {
	return s.registry
}

// Limits returns the parameter revision limits.
func (s *Server) Limits() SubscriptionLimits {
	return s.limits
}

// CreateSubscription creates a subscription for the session with the
// requested parameters revised against the server limits, and registers
// its publish callback. Returns the subscription and the revised
// parameters.
func (s *Server) CreateSubscription(session *Session, requested SubscriptionParameters) (*Subscription, SubscriptionParameters, StatusCode) {
	if s.maxSubscriptionsPerSession > 0 &&
		session.SubscriptionCount() >= s.maxSubscriptionsPerSession {
		return nil, SubscriptionParameters{}, BadTooManySubscriptions
	}

	revised := s.limits.ReviseSubscriptionParameters(requested)
	sub := NewSubscription(session, s.registry.NextSubscriptionID(), revised, s.maxRetransmissionQueueSize)
	s.registry.Add(sub)

	if result := s.registerPublishCallback(sub); result.IsBad() {
		s.registry.Remove(sub.ID())
		return nil, SubscriptionParameters{}, result
	}

	s.engineMetrics.SubscriptionCreated()
	s.logger.Info("subscription created", LogFields{
		LogFieldSessionID:      session.AuthenticationToken(),
		LogFieldSubscriptionID: sub.ID(),
	})
	return sub, revised, Good
}

// ModifySubscription revises the requested parameters and applies them to
// an existing subscription. The publish callback is re-registered when
// the publishing interval changed.
func (s *Server) ModifySubscription(session *Session, subscriptionID uint32, requested SubscriptionParameters) (SubscriptionParameters, StatusCode) {
	sub, ok := session.subscription(subscriptionID)
	if !ok {
		return SubscriptionParameters{}, BadSubscriptionIdInvalid
	}

	revised := s.limits.ReviseSubscriptionParameters(requested)
	intervalChanged := revised.PublishingInterval != sub.publishingInterval

	sub.publishingInterval = revised.PublishingInterval
	sub.lifetimeCount = revised.LifetimeCount
	sub.maxKeepAliveCount = revised.MaxKeepAliveCount
	sub.maxNotificationsPerPublish = revised.MaxNotificationsPerPublish
	sub.priority = revised.Priority

	if intervalChanged {
		if result := s.unregisterPublishCallback(sub); result.IsBad() {
			return SubscriptionParameters{}, result
		}
		if result := s.registerPublishCallback(sub); result.IsBad() {
			return SubscriptionParameters{}, result
		}
	}
	return revised, Good
}

// SetPublishingMode enables or disables publishing for each listed
// subscription, returning one result per id.
func (s *Server) SetPublishingMode(session *Session, subscriptionIDs []uint32, enabled bool) []StatusCode {
	results := make([]StatusCode, len(subscriptionIDs))
	for i, id := range subscriptionIDs {
		sub, ok := session.subscription(id)
		if !ok {
			results[i] = BadSubscriptionIdInvalid
			continue
		}
		sub.SetPublishingEnabled(enabled)
		results[i] = Good
	}
	return results
}

// DeleteSubscriptions deletes each listed subscription, returning one
// result per id. When the session's last subscription goes away, all
// queued publish requests are answered with BadNoSubscription.
func (s *Server) DeleteSubscriptions(session *Session, subscriptionIDs []uint32) []StatusCode {
	results := make([]StatusCode, len(subscriptionIDs))
	for i, id := range subscriptionIDs {
		results[i] = s.deleteSubscription(session, id)
	}
	return results
}

// deleteSubscription removes one subscription: the publish callback is
// unregistered, monitored items are deleted, the retransmission queue is
// drained and the registry entry removed. Idempotent per id.
func (s *Server) deleteSubscription(session *Session, subscriptionID uint32) StatusCode {
	sub, ok := session.subscription(subscriptionID)
	if !ok {
		return BadSubscriptionIdInvalid
	}

	s.unregisterPublishCallback(sub)

	for _, item := range sub.MonitoredItems() {
		sub.removeMonitoredItem(item.ID())
		s.engineMetrics.MonitoredItemDeleted()
	}
	sub.retransmission.DrainAll()
	s.registry.Remove(subscriptionID)
	s.engineMetrics.SubscriptionDeleted()

	s.logger.Info("subscription deleted", LogFields{
		LogFieldSessionID:      session.AuthenticationToken(),
		LogFieldSubscriptionID: subscriptionID,
	})

	s.answerPublishRequestsNoSubscription(session)
	return Good
}

// Publish handles one publish request: the acknowledgements are applied
// to the retransmission queues first, then the pre-allocated response
// shell is queued for the next publish cycle. Returns the per-ack
// results, which are also stored in the response shell.
func (s *Server) Publish(session *Session, requestID uint32, acknowledgements []SubscriptionAcknowledgement) []StatusCode {
	results := make([]StatusCode, len(acknowledgements))
	for i, ack := range acknowledgements {
		sub, ok := session.subscription(ack.SubscriptionID)
		if !ok {
			results[i] = BadSubscriptionIdInvalid
			continue
		}
		results[i] = sub.retransmission.Acknowledge(ack.SequenceNumber)
		if results[i].IsBad() {
			s.logger.Debug("acknowledgement for unknown sequence number", LogFields{
				LogFieldSubscriptionID: ack.SubscriptionID,
				LogFieldSequenceNumber: ack.SequenceNumber,
			})
		}
	}

	session.EnqueuePublishRequest(&PublishResponseEntry{
		RequestID: requestID,
		Response: &PublishResponse{
			Results: results,
		},
	})
	s.engineMetrics.PublishQueueDepth(session.QueuedPublishRequests())

	// A session without subscriptions cannot answer the request from a
	// publish cycle; drain the queue right away.
	s.answerPublishRequestsNoSubscription(session)

	return results
}

// Republish returns the stored notification message with the requested
// sequence number, decoded from the retransmission queue. A successful
// republish resets the subscription's lifetime counter.
func (s *Server) Republish(session *Session, subscriptionID, retransmitSequenceNumber uint32) (*NotificationMessage, StatusCode) {
	sub, ok := session.subscription(subscriptionID)
	if !ok {
		s.engineMetrics.RepublishRequested(BadSubscriptionIdInvalid)
		return nil, BadSubscriptionIdInvalid
	}

	entry, ok := sub.retransmission.Get(retransmitSequenceNumber)
	if !ok || entry.Encoded == nil {
		s.engineMetrics.RepublishRequested(BadMessageNotAvailable)
		return nil, BadMessageNotAvailable
	}

	message, err := s.codec.Decode(entry.Encoded)
	if err != nil {
		s.logger.Warn("could not decode retransmission entry", LogFields{
			LogFieldSubscriptionID: subscriptionID,
			LogFieldSequenceNumber: retransmitSequenceNumber,
			LogFieldError:          err,
		})
		s.engineMetrics.RepublishRequested(BadMessageNotAvailable)
		return nil, BadMessageNotAvailable
	}

	sub.currentLifetimeCount = 0
	s.engineMetrics.RepublishRequested(Good)
	return message, Good
}

// CreateMonitoredItem adds a monitored item to a subscription with the
// requested parameters revised against the server limits.
func (s *Server) CreateMonitoredItem(session *Session, subscriptionID uint32, requested MonitoredItemParameters) (*MonitoredItem, MonitoredItemParameters, StatusCode) {
	sub, ok := session.subscription(subscriptionID)
	if !ok {
		return nil, MonitoredItemParameters{}, BadSubscriptionIdInvalid
	}

	revised := s.limits.ReviseMonitoredItemParameters(requested)
	sub.nextMonitoredItemID++
	item := NewMonitoredItem(sub.nextMonitoredItemID, revised)
	sub.addMonitoredItem(item)

	s.engineMetrics.MonitoredItemCreated()
	s.logger.Debug("monitored item created", LogFields{
		LogFieldSubscriptionID:  subscriptionID,
		LogFieldMonitoredItemID: item.ID(),
	})
	return item, revised, Good
}

// DeleteMonitoredItem removes a monitored item from a subscription.
func (s *Server) DeleteMonitoredItem(session *Session, subscriptionID, monitoredItemID uint32) StatusCode {
	sub, ok := session.subscription(subscriptionID)
	if !ok {
		return BadSubscriptionIdInvalid
	}

	result := s.registry.DeleteMonitoredItem(sub, monitoredItemID)
	if result.IsGood() {
		s.engineMetrics.MonitoredItemDeleted()
	}
	return result
}

// answerPublishRequestsNoSubscription drains the session's queued publish
// requests with BadNoSubscription once its last subscription is gone. A
// session that still has subscriptions is left untouched.
func (s *Server) answerPublishRequestsNoSubscription(session *Session) {
	if session == nil || session.SubscriptionCount() > 0 {
		return
	}

	channel := session.Channel()
	for {
		pre := session.popPublishResponse()
		if pre == nil {
			return
		}

		response := pre.Response
		response.ResponseHeader.ServiceResult = BadNoSubscription
		response.ResponseHeader.Timestamp = time.Now().UTC()
		if channel != nil {
			channel.SendSymmetricMessage(pre.RequestID, MessageTypeMsg, response)
		}
		s.logger.Debug("answered publish request without subscription", LogFields{
			LogFieldSessionID: session.AuthenticationToken(),
			LogFieldRequestID: pre.RequestID,
		})
	}
}
