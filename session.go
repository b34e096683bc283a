package uasub

import (
	"sync"

	"github.com/gammazero/deque"
	"github.com/google/uuid"
)

// Session owns the publish request queue and the subscriptions of one
// client. Session establishment and authentication happen in the session
// layer; the engine only consumes the queue, the channel and the
// subscription list.
type Session struct {
	mu sync.Mutex

	authenticationToken uuid.UUID
	channel             SecureChannel

	responseQueue deque.Deque[*PublishResponseEntry]
	subscriptions []*Subscription
}

// NewSession creates a session bound to the given secure channel. The
// channel may be nil while the session is not yet attached; publish ticks
// stay silent until one is set.
func NewSession(channel SecureChannel) *Session {
	return &Session{
		authenticationToken: uuid.New(),
		channel:             channel,
	}
}

// AuthenticationToken returns the session's opaque authentication token.
func (s *Session) AuthenticationToken() uuid.UUID {
	return s.authenticationToken
}

// Channel returns the attached secure channel, or nil.
func (s *Session) Channel() SecureChannel {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.channel
}

// SetChannel attaches or detaches the secure channel.
func (s *Session) SetChannel(channel SecureChannel) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.channel = channel
}

// EnqueuePublishRequest queues a pre-allocated publish response shell.
// The request layer calls this once per received publish request.
func (s *Session) EnqueuePublishRequest(entry *PublishResponseEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.responseQueue.PushBack(entry)
}

// peekPublishResponse returns the head of the publish request queue
// without removing it, or nil when the queue is empty.
func (s *Session) peekPublishResponse() *PublishResponseEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.responseQueue.Len() == 0 {
		return nil
	}
	return s.responseQueue.Front()
}

// popPublishResponse removes and returns the head of the publish request
// queue, or nil when the queue is empty.
func (s *Session) popPublishResponse() *PublishResponseEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.responseQueue.Len() == 0 {
		return nil
	}
	return s.responseQueue.PopFront()
}

// QueuedPublishRequests returns the number of queued publish requests.
func (s *Session) QueuedPublishRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.responseQueue.Len()
}

// Subscriptions returns the session's subscriptions in creation order.
func (s *Session) Subscriptions() []*Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := make([]*Subscription, len(s.subscriptions))
	copy(subs, s.subscriptions)
	return subs
}

// SubscriptionCount returns the number of subscriptions on the session.
func (s *Session) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.subscriptions)
}

// addSubscription appends a subscription, preserving creation order.
func (s *Session) addSubscription(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscriptions = append(s.subscriptions, sub)
}

// removeSubscription removes the subscription with the given id.
func (s *Session) removeSubscription(subscriptionID uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sub := range s.subscriptions {
		if sub.ID() == subscriptionID {
			s.subscriptions = append(s.subscriptions[:i], s.subscriptions[i+1:]...)
			return true
		}
	}
	return false
}

// subscription returns the session subscription with the given id.
func (s *Session) subscription(subscriptionID uint32) (*Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subscriptions {
		if sub.ID() == subscriptionID {
			return sub, true
		}
	}
	return nil, false
}
