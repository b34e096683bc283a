package uasub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTickFixture builds a server with a manual scheduler, a session with
// a recording channel, and a directly constructed subscription so tests
// control every tick and every parameter.
func newTickFixture(t *testing.T, params SubscriptionParameters, retransmissionCap int) (*Server, *Session, *Subscription, *RecordingChannel) {
	t.Helper()

	srv := NewServer(WithScheduler(NewManualScheduler()))
	channel := NewRecordingChannel()
	session := NewSession(channel)

	sub := NewSubscription(session, srv.registry.NextSubscriptionID(), params, retransmissionCap)
	srv.registry.Add(sub)
	return srv, session, sub, channel
}

func queueRequest(session *Session, requestID uint32) {
	session.EnqueuePublishRequest(&PublishResponseEntry{
		RequestID: requestID,
		Response:  &PublishResponse{},
	})
}

func TestPublishCallback(t *testing.T) {
	t.Run("normal publish", func(t *testing.T) {
		srv, session, sub, channel := newTickFixture(t, SubscriptionParameters{
			MaxNotificationsPerPublish: 10,
			MaxKeepAliveCount:          5,
			LifetimeCount:              30,
			PublishingEnabled:          true,
		}, 0)

		item := NewMonitoredItem(1, MonitoredItemParameters{ClientHandle: 1, QueueSize: 10})
		sub.addMonitoredItem(item)
		enqueueValues(item, "v1", "v2", "v3")
		queueRequest(session, 42)

		srv.publishCallback(sub)

		sent := channel.Sent()
		require.Len(t, sent, 1)
		response := sent[0].Response
		assert.Equal(t, uint32(42), sent[0].RequestID)
		assert.Equal(t, sub.ID(), response.SubscriptionID)
		assert.Equal(t, uint32(1), response.NotificationMessage.SequenceNumber)
		assert.False(t, response.MoreNotifications)
		assert.Equal(t, []uint32{1}, response.AvailableSequenceNumbers)

		notifications := response.NotificationMessage.NotificationData[0].MonitoredItems
		require.Len(t, notifications, 3)
		assert.Equal(t, "v1", notifications[0].Value.Value)
		assert.Equal(t, "v2", notifications[1].Value.Value)
		assert.Equal(t, "v3", notifications[2].Value.Value)

		assert.Equal(t, uint32(0), item.CurrentQueueSize())
		assert.Equal(t, uint32(0), sub.CurrentKeepAliveCount())
		assert.Equal(t, uint32(0), sub.CurrentLifetimeCount())
		assert.Equal(t, StateNormal, sub.State())
		assert.Equal(t, uint32(1), sub.SequenceNumber())
	})

	t.Run("keep-alive after max silent intervals", func(t *testing.T) {
		srv, session, sub, channel := newTickFixture(t, SubscriptionParameters{
			MaxNotificationsPerPublish: 10,
			MaxKeepAliveCount:          5,
			LifetimeCount:              30,
			PublishingEnabled:          true,
		}, 0)
		queueRequest(session, 1)

		for tick := 1; tick <= 4; tick++ {
			srv.publishCallback(sub)
			assert.Equal(t, 0, channel.Len())
			assert.Equal(t, uint32(tick), sub.CurrentKeepAliveCount())
		}

		srv.publishCallback(sub)

		sent := channel.Sent()
		require.Len(t, sent, 1)
		response := sent[0].Response
		assert.Empty(t, response.NotificationMessage.NotificationData)
		assert.Equal(t, uint32(1), response.NotificationMessage.SequenceNumber)
		assert.False(t, response.MoreNotifications)
		assert.Empty(t, response.AvailableSequenceNumbers)

		// The counter itself was not advanced.
		assert.Equal(t, uint32(0), sub.SequenceNumber())
		assert.Equal(t, uint32(0), sub.CurrentKeepAliveCount())
	})

	t.Run("keep-alive sequence number is reused by the next data send", func(t *testing.T) {
		srv, session, sub, channel := newTickFixture(t, SubscriptionParameters{
			MaxNotificationsPerPublish: 10,
			MaxKeepAliveCount:          1,
			LifetimeCount:              30,
			PublishingEnabled:          true,
		}, 0)
		item := NewMonitoredItem(1, MonitoredItemParameters{QueueSize: 10})
		sub.addMonitoredItem(item)

		queueRequest(session, 1)
		srv.publishCallback(sub)

		require.Equal(t, 1, channel.Len())
		keepAlive := channel.Sent()[0].Response
		assert.Equal(t, uint32(1), keepAlive.NotificationMessage.SequenceNumber)

		item.Enqueue(DataValue{Value: 1})
		queueRequest(session, 2)
		srv.publishCallback(sub)

		sent := channel.Sent()
		require.Len(t, sent, 2)
		assert.Equal(t, uint32(1), sent[1].Response.NotificationMessage.SequenceNumber)
		assert.Equal(t, uint32(1), sub.SequenceNumber())
	})

	t.Run("late state and lifetime expiry", func(t *testing.T) {
		srv, session, sub, channel := newTickFixture(t, SubscriptionParameters{
			MaxNotificationsPerPublish: 10,
			MaxKeepAliveCount:          100,
			LifetimeCount:              3,
			PublishingEnabled:          true,
		}, 0)

		item := NewMonitoredItem(1, MonitoredItemParameters{QueueSize: 10})
		sub.addMonitoredItem(item)
		item.Enqueue(DataValue{Value: 1})

		// Tick 1: no publish request, enter Late.
		srv.publishCallback(sub)
		assert.Equal(t, StateLate, sub.State())
		assert.Equal(t, uint32(0), sub.CurrentLifetimeCount())

		// Ticks 2-4: lifetime counter climbs to the limit.
		for want := uint32(1); want <= 3; want++ {
			srv.publishCallback(sub)
			assert.Equal(t, want, sub.CurrentLifetimeCount())
		}
		assert.Equal(t, 1, srv.registry.Count())

		// Tick 5: strictly greater than the limit deletes the subscription.
		srv.publishCallback(sub)
		assert.Equal(t, 0, srv.registry.Count())
		assert.Equal(t, 0, session.SubscriptionCount())
		assert.Equal(t, 0, channel.Len())
	})

	t.Run("late state exits on successful send", func(t *testing.T) {
		srv, session, sub, channel := newTickFixture(t, SubscriptionParameters{
			MaxNotificationsPerPublish: 10,
			MaxKeepAliveCount:          100,
			LifetimeCount:              10,
			PublishingEnabled:          true,
		}, 0)
		item := NewMonitoredItem(1, MonitoredItemParameters{QueueSize: 10})
		sub.addMonitoredItem(item)
		item.Enqueue(DataValue{Value: 1})

		srv.publishCallback(sub)
		assert.Equal(t, StateLate, sub.State())

		queueRequest(session, 1)
		srv.publishCallback(sub)

		assert.Equal(t, 1, channel.Len())
		assert.Equal(t, StateNormal, sub.State())
		assert.Equal(t, uint32(0), sub.CurrentLifetimeCount())
	})

	t.Run("more notifications sends again within one tick", func(t *testing.T) {
		srv, session, sub, channel := newTickFixture(t, SubscriptionParameters{
			MaxNotificationsPerPublish: 2,
			MaxKeepAliveCount:          5,
			LifetimeCount:              30,
			PublishingEnabled:          true,
		}, 0)

		item := NewMonitoredItem(1, MonitoredItemParameters{QueueSize: 10})
		sub.addMonitoredItem(item)
		enqueueValues(item, 1, 2, 3, 4, 5)
		queueRequest(session, 1)
		queueRequest(session, 2)

		srv.publishCallback(sub)

		sent := channel.Sent()
		require.Len(t, sent, 2)

		first := sent[0].Response
		assert.Equal(t, uint32(1), first.NotificationMessage.SequenceNumber)
		assert.Len(t, first.NotificationMessage.NotificationData[0].MonitoredItems, 2)
		assert.True(t, first.MoreNotifications)

		second := sent[1].Response
		assert.Equal(t, uint32(2), second.NotificationMessage.SequenceNumber)
		assert.Len(t, second.NotificationMessage.NotificationData[0].MonitoredItems, 2)
		assert.True(t, second.MoreNotifications)

		// The third batch waits for the next tick.
		assert.Equal(t, uint32(1), item.CurrentQueueSize())
		assert.Equal(t, 0, session.QueuedPublishRequests())
	})

	t.Run("publishing disabled still sends keep-alives", func(t *testing.T) {
		srv, session, sub, channel := newTickFixture(t, SubscriptionParameters{
			MaxNotificationsPerPublish: 10,
			MaxKeepAliveCount:          2,
			LifetimeCount:              30,
			PublishingEnabled:          false,
		}, 0)

		item := NewMonitoredItem(1, MonitoredItemParameters{QueueSize: 10})
		sub.addMonitoredItem(item)
		enqueueValues(item, 1, 2, 3)
		queueRequest(session, 1)

		srv.publishCallback(sub)
		assert.Equal(t, 0, channel.Len())

		srv.publishCallback(sub)
		require.Equal(t, 1, channel.Len())
		response := channel.Sent()[0].Response
		assert.Empty(t, response.NotificationMessage.NotificationData)

		// Queued values stay untouched while publishing is disabled.
		assert.Equal(t, uint32(3), item.CurrentQueueSize())
	})

	t.Run("missing channel keeps everything untouched", func(t *testing.T) {
		srv := NewServer(WithScheduler(NewManualScheduler()))
		session := NewSession(nil)
		sub := NewSubscription(session, 1, SubscriptionParameters{
			MaxNotificationsPerPublish: 10,
			MaxKeepAliveCount:          5,
			LifetimeCount:              30,
			PublishingEnabled:          true,
		}, 0)
		srv.registry.Add(sub)

		item := NewMonitoredItem(1, MonitoredItemParameters{QueueSize: 10})
		sub.addMonitoredItem(item)
		item.Enqueue(DataValue{Value: 1})
		queueRequest(session, 1)

		srv.publishCallback(sub)

		assert.Equal(t, uint32(1), item.CurrentQueueSize())
		assert.Equal(t, 1, session.QueuedPublishRequests())
		assert.Equal(t, StateNormal, sub.State())
	})

	t.Run("sequence number wraps past uint32 skipping zero", func(t *testing.T) {
		srv, session, sub, channel := newTickFixture(t, SubscriptionParameters{
			MaxNotificationsPerPublish: 10,
			MaxKeepAliveCount:          5,
			LifetimeCount:              30,
			PublishingEnabled:          true,
		}, 0)

		sub.sequenceNumber = 4294967295

		item := NewMonitoredItem(1, MonitoredItemParameters{QueueSize: 10})
		sub.addMonitoredItem(item)
		item.Enqueue(DataValue{Value: 1})
		queueRequest(session, 1)

		srv.publishCallback(sub)

		require.Equal(t, 1, channel.Len())
		assert.Equal(t, uint32(1), channel.Sent()[0].Response.NotificationMessage.SequenceNumber)
		assert.Equal(t, uint32(1), sub.SequenceNumber())
	})

	t.Run("retransmission eviction across publishes", func(t *testing.T) {
		srv, session, sub, channel := newTickFixture(t, SubscriptionParameters{
			MaxNotificationsPerPublish: 10,
			MaxKeepAliveCount:          5,
			LifetimeCount:              30,
			PublishingEnabled:          true,
		}, 2)

		item := NewMonitoredItem(1, MonitoredItemParameters{QueueSize: 10})
		sub.addMonitoredItem(item)

		for i := 0; i < 3; i++ {
			item.Enqueue(DataValue{Value: i})
			queueRequest(session, uint32(i+1))
			srv.publishCallback(sub)
		}

		require.Equal(t, 3, channel.Len())
		assert.Equal(t, []uint32{3, 2}, sub.RetransmissionBuffer().SequenceNumbers())

		// The third response already reported only the retained numbers.
		last := channel.Sent()[2].Response
		assert.Equal(t, []uint32{3, 2}, last.AvailableSequenceNumbers)
	})

	t.Run("sequence numbers strictly increase across sends", func(t *testing.T) {
		srv, session, sub, channel := newTickFixture(t, SubscriptionParameters{
			MaxNotificationsPerPublish: 1,
			MaxKeepAliveCount:          5,
			LifetimeCount:              30,
			PublishingEnabled:          true,
		}, 0)

		item := NewMonitoredItem(1, MonitoredItemParameters{QueueSize: 20})
		sub.addMonitoredItem(item)

		for i := 0; i < 10; i++ {
			item.Enqueue(DataValue{Value: i})
			queueRequest(session, uint32(i+1))
			srv.publishCallback(sub)
		}

		sent := channel.Sent()
		require.Len(t, sent, 10)
		for i, msg := range sent {
			assert.Equal(t, uint32(i+1), msg.Response.NotificationMessage.SequenceNumber)
		}
	})
}

func TestPublishCallbackRegistration(t *testing.T) {
	t.Run("register is idempotent", func(t *testing.T) {
		sched := NewManualScheduler()
		srv := NewServer(WithScheduler(sched))
		session := NewSession(NewRecordingChannel())
		sub := NewSubscription(session, 1, SubscriptionParameters{
			PublishingInterval: 100,
		}, 0)

		assert.Equal(t, Good, srv.registerPublishCallback(sub))
		assert.Equal(t, Good, srv.registerPublishCallback(sub))
		assert.Equal(t, 1, sched.Count())
	})

	t.Run("unregister is idempotent", func(t *testing.T) {
		sched := NewManualScheduler()
		srv := NewServer(WithScheduler(sched))
		session := NewSession(NewRecordingChannel())
		sub := NewSubscription(session, 1, SubscriptionParameters{
			PublishingInterval: 100,
		}, 0)

		srv.registerPublishCallback(sub)
		assert.Equal(t, Good, srv.unregisterPublishCallback(sub))
		assert.Equal(t, Good, srv.unregisterPublishCallback(sub))
		assert.Equal(t, 0, sched.Count())
	})
}
