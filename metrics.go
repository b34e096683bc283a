package uasub

import (
	"time"
)

// MetricType represents the type of metric.
type MetricType int

const (
	// MetricTypeCounter is a monotonically increasing counter.
	MetricTypeCounter MetricType = 0
	// MetricTypeGauge is a value that can go up and down.
	MetricTypeGauge MetricType = 1
	// MetricTypeHistogram tracks distribution of values.
	MetricTypeHistogram MetricType = 2
)

// String returns the string representation of the metric type.
func (t MetricType) String() string {
	switch t {
	case MetricTypeCounter:
		return "counter"
	case MetricTypeGauge:
		return "gauge"
	case MetricTypeHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// MetricLabels represents key-value pairs for metric labels.
type MetricLabels map[string]string

// Metrics defines the interface for collecting metrics.
type Metrics interface {
	// Counter returns a counter metric.
	Counter(name string, labels MetricLabels) Counter

	// Gauge returns a gauge metric.
	Gauge(name string, labels MetricLabels) Gauge

	// Histogram returns a histogram metric.
	Histogram(name string, labels MetricLabels) Histogram
}

// Counter is a monotonically increasing counter.
type Counter interface {
	// Inc increments the counter by 1.
	Inc()

	// Add adds the given value to the counter.
	Add(delta float64)

	// Value returns the current value.
	Value() float64
}

// Gauge is a metric that can go up and down.
type Gauge interface {
	// Set sets the gauge to the given value.
	Set(value float64)

	// Inc increments the gauge by 1.
	Inc()

	// Dec decrements the gauge by 1.
	Dec()

	// Add adds the given value to the gauge.
	Add(delta float64)

	// Sub subtracts the given value from the gauge.
	Sub(delta float64)

	// Value returns the current value.
	Value() float64
}

// Histogram tracks the distribution of values.
type Histogram interface {
	// Observe records a value.
	Observe(value float64)

	// ObserveDuration records a duration in seconds.
	ObserveDuration(d time.Duration)

	// Count returns the number of observations.
	Count() uint64

	// Sum returns the sum of all observations.
	Sum() float64
}

// NoOpMetrics is a no-op implementation of Metrics.
type NoOpMetrics struct{}

// Counter returns a no-op counter.
func (n *NoOpMetrics) Counter(_ string, _ MetricLabels) Counter {
	return &noOpCounter{}
}

// Gauge returns a no-op gauge.
func (n *NoOpMetrics) Gauge(_ string, _ MetricLabels) Gauge {
	return &noOpGauge{}
}

// Histogram returns a no-op histogram.
func (n *NoOpMetrics) Histogram(_ string, _ MetricLabels) Histogram {
	return &noOpHistogram{}
}

type noOpCounter struct{}

func (n *noOpCounter) Inc()           {}
func (n *noOpCounter) Add(_ float64)  {}
func (n *noOpCounter) Value() float64 { return 0 }

type noOpGauge struct{}

func (n *noOpGauge) Set(_ float64)  {}
func (n *noOpGauge) Inc()           {}
func (n *noOpGauge) Dec()           {}
func (n *noOpGauge) Add(_ float64)  {}
func (n *noOpGauge) Sub(_ float64)  {}
func (n *noOpGauge) Value() float64 { return 0 }

type noOpHistogram struct{}

func (n *noOpHistogram) Observe(_ float64)               {}
func (n *noOpHistogram) ObserveDuration(_ time.Duration) {}
func (n *noOpHistogram) Count() uint64                   { return 0 }
func (n *noOpHistogram) Sum() float64                    { return 0 }

// Standard metric names for the subscription engine.
const (
	// MetricSubscriptions is the current number of subscriptions.
	MetricSubscriptions = "opcua_subscriptions"

	// MetricSubscriptionsTotal is the total number of created subscriptions.
	MetricSubscriptionsTotal = "opcua_subscriptions_total"

	// MetricMonitoredItems is the current number of monitored items.
	MetricMonitoredItems = "opcua_monitored_items"

	// MetricPublishResponses is the total number of publish responses sent.
	MetricPublishResponses = "opcua_publish_responses_total"

	// MetricKeepAlives is the total number of keep-alive responses sent.
	MetricKeepAlives = "opcua_keepalives_total"

	// MetricNotifications is the total number of notifications delivered.
	MetricNotifications = "opcua_notifications_total"

	// MetricRetransmissionEntries is the current retransmission queue depth.
	MetricRetransmissionEntries = "opcua_retransmission_entries"

	// MetricLateTicks is the total number of ticks without a publish request.
	MetricLateTicks = "opcua_late_ticks_total"

	// MetricLifetimeExpiries is the total number of lifetime expiries.
	MetricLifetimeExpiries = "opcua_lifetime_expiries_total"

	// MetricPublishQueueDepth is the per-session publish request queue depth.
	MetricPublishQueueDepth = "opcua_publish_queue_depth"

	// MetricRepublishRequests is the total number of republish requests.
	MetricRepublishRequests = "opcua_republish_requests_total"
)

// Standard metric labels.
const (
	// LabelStatusCode is the service status code label.
	LabelStatusCode = "status_code"
)

// EngineMetrics provides convenience methods for common subscription
// engine metrics.
type EngineMetrics struct {
	metrics Metrics
}

// NewEngineMetrics creates a new EngineMetrics instance.
func NewEngineMetrics(m Metrics) *EngineMetrics {
	return &EngineMetrics{metrics: m}
}

// SubscriptionCreated records a new subscription.
func (e *EngineMetrics) SubscriptionCreated() {
	e.metrics.Gauge(MetricSubscriptions, nil).Inc()
	e.metrics.Counter(MetricSubscriptionsTotal, nil).Inc()
}

// SubscriptionDeleted records a removed subscription.
func (e *EngineMetrics) SubscriptionDeleted() {
	e.metrics.Gauge(MetricSubscriptions, nil).Dec()
}

// MonitoredItemCreated records a new monitored item.
func (e *EngineMetrics) MonitoredItemCreated() {
	e.metrics.Gauge(MetricMonitoredItems, nil).Inc()
}

// MonitoredItemDeleted records a removed monitored item.
func (e *EngineMetrics) MonitoredItemDeleted() {
	e.metrics.Gauge(MetricMonitoredItems, nil).Dec()
}

// PublishResponseSent records a sent publish response.
func (e *EngineMetrics) PublishResponseSent() {
	e.metrics.Counter(MetricPublishResponses, nil).Inc()
}

// KeepAliveSent records a sent keep-alive response.
func (e *EngineMetrics) KeepAliveSent() {
	e.metrics.Counter(MetricKeepAlives, nil).Inc()
}

// NotificationsSent records delivered notifications.
func (e *EngineMetrics) NotificationsSent(n int) {
	e.metrics.Counter(MetricNotifications, nil).Add(float64(n))
}

// RetransmissionEntries records the current retransmission queue depth.
func (e *EngineMetrics) RetransmissionEntries(n int) {
	e.metrics.Gauge(MetricRetransmissionEntries, nil).Set(float64(n))
}

// LateTick records a tick that found no publish request.
func (e *EngineMetrics) LateTick() {
	e.metrics.Counter(MetricLateTicks, nil).Inc()
}

// LifetimeExpiry records a subscription deleted on lifetime expiry.
func (e *EngineMetrics) LifetimeExpiry() {
	e.metrics.Counter(MetricLifetimeExpiries, nil).Inc()
}

// PublishQueueDepth records the publish request queue depth of a session.
func (e *EngineMetrics) PublishQueueDepth(n int) {
	e.metrics.Gauge(MetricPublishQueueDepth, nil).Set(float64(n))
}

// RepublishRequested records a republish request and its result.
func (e *EngineMetrics) RepublishRequested(result StatusCode) {
	labels := MetricLabels{LabelStatusCode: result.String()}
	e.metrics.Counter(MetricRepublishRequests, labels).Inc()
}
