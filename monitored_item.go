package uasub

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
	"golang.org/x/time/rate"
)

// MonitoredItemParameters are the client-requested monitoring parameters.
type MonitoredItemParameters struct {
	// ClientHandle is the client-side correlation id reported with every
	// notification produced by the item.
	ClientHandle uint32

	// SamplingInterval is the fastest rate at which new values are
	// queued. Values arriving faster are coalesced into the most recent
	// queued value. 0 disables sampling-rate limiting.
	SamplingInterval time.Duration

	// QueueSize is the maximum number of values held for the next
	// publish. 0 means a queue size of 1.
	QueueSize uint32

	// DiscardOldest selects which value is dropped when the queue is
	// full: the oldest (true) or the incoming one replaces the newest
	// (false).
	DiscardOldest bool
}

// MonitoredItem is a registered data source within a subscription. The
// sampling side enqueues values; the publish tick drains them during
// notification assembly. Queue order is the order values will appear in
// notification messages, so the queue supports removal during iteration.
type MonitoredItem struct {
	mu     sync.Mutex
	id     uint32
	params MonitoredItemParameters

	queue   deque.Deque[QueuedValue]
	limiter *rate.Limiter
}

// NewMonitoredItem creates a monitored item with the given id and
// (already revised) monitoring parameters.
func NewMonitoredItem(id uint32, params MonitoredItemParameters) *MonitoredItem {
	if params.QueueSize == 0 {
		params.QueueSize = 1
	}

	item := &MonitoredItem{
		id:     id,
		params: params,
	}
	if params.SamplingInterval > 0 {
		item.limiter = rate.NewLimiter(rate.Every(params.SamplingInterval), 1)
	}
	return item
}

// ID returns the monitored item id.
func (m *MonitoredItem) ID() uint32 {
	return m.id
}

// ClientHandle returns the client handle notifications are reported under.
func (m *MonitoredItem) ClientHandle() uint32 {
	return m.params.ClientHandle
}

// Parameters returns the revised monitoring parameters.
func (m *MonitoredItem) Parameters() MonitoredItemParameters {
	return m.params
}

// Enqueue queues a sampled value for the next publish. Values arriving
// faster than the sampling interval overwrite the newest queued value
// instead of growing the queue. When the queue is at capacity, either the
// oldest value is discarded or the newest is overwritten, depending on
// DiscardOldest.
func (m *MonitoredItem) Enqueue(value DataValue) {
	m.mu.Lock()
	defer m.mu.Unlock()

	qv := QueuedValue{
		ClientHandle: m.params.ClientHandle,
		Value:        value,
	}

	// Coalesce values that arrive faster than the sampling interval.
	if m.limiter != nil && !m.limiter.Allow() {
		if m.queue.Len() > 0 {
			m.queue.Set(m.queue.Len()-1, qv)
			return
		}
	}

	if uint32(m.queue.Len()) >= m.params.QueueSize {
		if m.params.DiscardOldest {
			m.queue.PopFront()
		} else {
			m.queue.Set(m.queue.Len()-1, qv)
			return
		}
	}
	m.queue.PushBack(qv)
}

// CurrentQueueSize returns the number of queued values.
func (m *MonitoredItem) CurrentQueueSize() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return uint32(m.queue.Len())
}

// dequeue removes and returns the oldest queued value.
func (m *MonitoredItem) dequeue() (QueuedValue, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queue.Len() == 0 {
		return QueuedValue{}, false
	}
	return m.queue.PopFront(), true
}

// clearQueue drops all queued values. Called when the item is deleted.
func (m *MonitoredItem) clearQueue() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queue.Clear()
}
