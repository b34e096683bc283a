package uasub

import (
	"time"
)

// SubscriptionState is the delivery state of a subscription.
type SubscriptionState int

const (
	// StateNormal means publish responses are being delivered on time.
	// A response goes out on a tick only when notifications are pending or
	// a keep-alive is due.
	StateNormal SubscriptionState = 0
	// StateLate means a notification was due but no publish request was
	// available. The state persists until a send succeeds or the
	// subscription lifetime expires.
	StateLate SubscriptionState = 1
	// StateKeepAlive means the subscription is idle and only keep-alive
	// responses are due. The state is implicit in the keep-alive counter:
	// the engine never sets it, and State reports only StateNormal or
	// StateLate.
	StateKeepAlive SubscriptionState = 2
)

// String returns a human-readable state name.
func (s SubscriptionState) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateLate:
		return "LATE"
	case StateKeepAlive:
		return "KEEPALIVE"
	default:
		return "UNKNOWN"
	}
}

// SubscriptionParameters are the negotiated settings of a subscription.
// CreateSubscription revises client-requested values against the server
// limits before they end up here.
type SubscriptionParameters struct {
	// PublishingInterval is the cycle time of the publish callback.
	PublishingInterval time.Duration

	// LifetimeCount is how many publish intervals the subscription may
	// stay late before it is deleted.
	LifetimeCount uint32

	// MaxKeepAliveCount is how many empty publish intervals pass before
	// a keep-alive response is forced.
	MaxKeepAliveCount uint32

	// MaxNotificationsPerPublish caps the notifications embedded in one
	// message. 0 means unlimited.
	MaxNotificationsPerPublish uint32

	// PublishingEnabled gates notification delivery. Keep-alives are
	// sent regardless.
	PublishingEnabled bool

	// Priority orders subscriptions competing for publish requests.
	// Kept for protocol completeness; the engine treats sessions with a
	// single serial queue.
	Priority uint8
}

// Subscription is a server-side entity that periodically aggregates
// monitored value changes into notification messages for one client.
// It is owned by exactly one session.
//
// All mutation of a subscription happens on the server's serial
// dispatcher: publish ticks are serialized by the scheduler contract and
// service calls run on the same loop.
type Subscription struct {
	id      uint32
	session *Session

	publishingInterval         time.Duration
	lifetimeCount              uint32
	maxKeepAliveCount          uint32
	maxNotificationsPerPublish uint32
	publishingEnabled          bool
	priority                   uint8

	state                 SubscriptionState
	currentKeepAliveCount uint32
	currentLifetimeCount  uint32
	sequenceNumber        uint32

	monitoredItems      []*MonitoredItem
	nextMonitoredItemID uint32

	retransmission *RetransmissionBuffer

	publishCallbackID         CallbackID
	publishCallbackRegistered bool
}

// NewSubscription creates a subscription owned by the given session.
// maxRetransmissionQueueSize bounds the retransmission queue; 0 means
// unlimited.
func NewSubscription(session *Session, id uint32, params SubscriptionParameters, maxRetransmissionQueueSize int) *Subscription {
	return &Subscription{
		id:      id,
		session: session,

		publishingInterval:         params.PublishingInterval,
		lifetimeCount:              params.LifetimeCount,
		maxKeepAliveCount:          params.MaxKeepAliveCount,
		maxNotificationsPerPublish: params.MaxNotificationsPerPublish,
		publishingEnabled:          params.PublishingEnabled,
		priority:                   params.Priority,

		state:          StateNormal,
		retransmission: NewRetransmissionBuffer(maxRetransmissionQueueSize),
	}
}

// ID returns the subscription id.
func (sub *Subscription) ID() uint32 {
	return sub.id
}

// Session returns the owning session.
func (sub *Subscription) Session() *Session {
	return sub.session
}

// State returns the current delivery state.
func (sub *Subscription) State() SubscriptionState {
	return sub.state
}

// SequenceNumber returns the sequence number of the last sent
// notification message that carried notifications. Keep-alive responses
// do not advance it; 0 means no such message has been sent yet.
func (sub *Subscription) SequenceNumber() uint32 {
	return sub.sequenceNumber
}

// CurrentKeepAliveCount returns the keep-alive counter.
func (sub *Subscription) CurrentKeepAliveCount() uint32 {
	return sub.currentKeepAliveCount
}

// CurrentLifetimeCount returns the lifetime counter.
func (sub *Subscription) CurrentLifetimeCount() uint32 {
	return sub.currentLifetimeCount
}

// Parameters returns the negotiated subscription parameters.
func (sub *Subscription) Parameters() SubscriptionParameters {
	return SubscriptionParameters{
		PublishingInterval:         sub.publishingInterval,
		LifetimeCount:              sub.lifetimeCount,
		MaxKeepAliveCount:          sub.maxKeepAliveCount,
		MaxNotificationsPerPublish: sub.maxNotificationsPerPublish,
		PublishingEnabled:          sub.publishingEnabled,
		Priority:                   sub.priority,
	}
}

// SetPublishingEnabled gates notification delivery for the subscription.
func (sub *Subscription) SetPublishingEnabled(enabled bool) {
	sub.publishingEnabled = enabled
}

// RetransmissionBuffer returns the subscription's retransmission queue.
func (sub *Subscription) RetransmissionBuffer() *RetransmissionBuffer {
	return sub.retransmission
}

// MonitoredItems returns the monitored items in insertion order.
func (sub *Subscription) MonitoredItems() []*MonitoredItem {
	items := make([]*MonitoredItem, len(sub.monitoredItems))
	copy(items, sub.monitoredItems)
	return items
}

// MonitoredItem returns the monitored item with the given id.
func (sub *Subscription) MonitoredItem(itemID uint32) (*MonitoredItem, bool) {
	for _, item := range sub.monitoredItems {
		if item.ID() == itemID {
			return item, true
		}
	}
	return nil, false
}

// addMonitoredItem appends an item to the subscription, preserving
// insertion order for notification assembly.
func (sub *Subscription) addMonitoredItem(item *MonitoredItem) {
	sub.monitoredItems = append(sub.monitoredItems, item)
}

// removeMonitoredItem removes the item with the given id.
func (sub *Subscription) removeMonitoredItem(itemID uint32) StatusCode {
	for i, item := range sub.monitoredItems {
		if item.ID() == itemID {
			item.clearQueue()
			sub.monitoredItems = append(sub.monitoredItems[:i], sub.monitoredItems[i+1:]...)
			return Good
		}
	}
	return BadMonitoredItemIdInvalid
}

// nextSequenceNumber returns the sequence number following seq. The
// counter wraps through uint32 and never takes the value 0, so clients
// compare sequence numbers by equality only.
func nextSequenceNumber(seq uint32) uint32 {
	seq++
	if seq == 0 {
		seq = 1
	}
	return seq
}

// publishCallback runs one publish cycle for the subscription. It is
// invoked by the scheduler every publishing interval and re-runs
// immediately while a full message left more notifications pending. The
// loop is bounded: every iteration either consumes one queued publish
// request or returns.
func (s *Server) publishCallback(sub *Subscription) {
	for {
		if !s.publishOnce(sub) {
			return
		}
	}
}

// publishOnce performs a single publish attempt. It returns true when a
// full message was sent with more notifications pending, which makes the
// caller repeat the cycle immediately.
func (s *Server) publishOnce(sub *Subscription) bool {
	s.logger.Debug("publish callback", LogFields{
		LogFieldSubscriptionID: sub.id,
	})

	// Count the available notifications.
	notifications, moreNotifications := countQueuedNotifications(sub)

	// Nothing to publish. Advance the keep-alive counter and stay silent
	// until a keep-alive is due.
	if notifications == 0 {
		sub.currentKeepAliveCount++
		if sub.currentKeepAliveCount < sub.maxKeepAliveCount {
			return false
		}
		s.logger.Debug("sending a keep-alive", LogFields{
			LogFieldSubscriptionID: sub.id,
		})
	}

	// The session may not have a channel attached yet.
	channel := sub.session.Channel()
	if channel == nil {
		return false
	}

	// Cannot publish without a queued publish request.
	pre := sub.session.peekPublishResponse()
	if pre == nil {
		s.logger.Debug("no publish request queued", LogFields{
			LogFieldSubscriptionID: sub.id,
		})
		if sub.state != StateLate {
			sub.state = StateLate
			s.engineMetrics.LateTick()
		} else {
			sub.currentLifetimeCount++
			if sub.currentLifetimeCount > sub.lifetimeCount {
				s.logger.Debug("end of lifetime for subscription", LogFields{
					LogFieldSubscriptionID: sub.id,
				})
				s.engineMetrics.LifetimeExpiry()
				s.deleteSubscription(sub.session, sub.id)
			}
		}
		return false
	}

	response := pre.Response
	var message *NotificationMessage
	if notifications > 0 {
		var status StatusCode
		message, status = prepareNotificationMessage(sub, notifications)
		if status.IsBad() {
			s.logger.Warn("could not prepare the notification message", LogFields{
				LogFieldSubscriptionID: sub.id,
				LogFieldStatusCode:     status,
			})
			return false
		}
	}

	// <-- The point of no return -->

	// Remove the response from the queue.
	sub.session.popPublishResponse()

	now := time.Now().UTC()
	response.ResponseHeader.Timestamp = now
	response.SubscriptionID = sub.id
	response.MoreNotifications = moreNotifications

	if notifications == 0 {
		// A keep-alive carries the sequence number of the next
		// notification without advancing the counter, and leaves no
		// retransmission entry behind.
		message = &NotificationMessage{
			SequenceNumber: nextSequenceNumber(sub.sequenceNumber),
			PublishTime:    now,
		}
		s.engineMetrics.KeepAliveSent()
	} else {
		sub.sequenceNumber = nextSequenceNumber(sub.sequenceNumber)
		message.SequenceNumber = sub.sequenceNumber
		message.PublishTime = now

		// The entry must be queued before the available sequence
		// numbers are computed, so that the message is included in its
		// own acknowledgeable list.
		entry := &NotificationMessageEntry{
			SequenceNumber: message.SequenceNumber,
			PublishTime:    now,
		}
		encoded, err := s.codec.Encode(message)
		if err != nil {
			s.logger.Warn("could not encode notification message for retransmission", LogFields{
				LogFieldSubscriptionID: sub.id,
				LogFieldSequenceNumber: message.SequenceNumber,
				LogFieldError:          err,
			})
		} else {
			entry.Encoded = encoded
		}
		if evicted := sub.retransmission.Insert(entry); evicted != nil {
			s.logger.Debug("evicted retransmission entry", LogFields{
				LogFieldSubscriptionID: sub.id,
				LogFieldSequenceNumber: evicted.SequenceNumber,
			})
		}
		s.engineMetrics.NotificationsSent(len(message.NotificationData[0].MonitoredItems))
	}

	response.NotificationMessage = *message
	response.AvailableSequenceNumbers = sub.retransmission.SequenceNumbers()

	s.logger.Debug("sending out a publish response", LogFields{
		LogFieldSubscriptionID:    sub.id,
		LogFieldSequenceNumber:    message.SequenceNumber,
		LogFieldNotificationCount: notifications,
	})
	// The send is fire-and-forget: a failure past the point of no return
	// keeps the retransmission entry and the client recovers through the
	// sequence number gap and Republish.
	channel.SendSymmetricMessage(pre.RequestID, MessageTypeMsg, response)
	s.engineMetrics.PublishResponseSent()
	s.engineMetrics.RetransmissionEntries(sub.retransmission.Len())

	// Reset the subscription state to normal.
	sub.state = StateNormal
	sub.currentKeepAliveCount = 0
	sub.currentLifetimeCount = 0

	return moreNotifications
}

// registerPublishCallback registers the repeated publish callback with
// the scheduler. Idempotent.
func (s *Server) registerPublishCallback(sub *Subscription) StatusCode {
	s.logger.Debug("register subscription publishing callback", LogFields{
		LogFieldSubscriptionID: sub.id,
	})

	if sub.publishCallbackRegistered {
		return Good
	}

	id, err := s.scheduler.AddRepeatedCallback(func() {
		s.publishCallback(sub)
	}, sub.publishingInterval)
	if err != nil {
		return BadInternalError
	}

	sub.publishCallbackID = id
	sub.publishCallbackRegistered = true
	return Good
}

// unregisterPublishCallback removes the repeated publish callback.
// Idempotent.
func (s *Server) unregisterPublishCallback(sub *Subscription) StatusCode {
	s.logger.Debug("unregister subscription publishing callback", LogFields{
		LogFieldSubscriptionID: sub.id,
	})

	if !sub.publishCallbackRegistered {
		return Good
	}

	if err := s.scheduler.RemoveRepeatedCallback(sub.publishCallbackID); err != nil {
		return BadInternalError
	}

	sub.publishCallbackRegistered = false
	return Good
}
