package uasub

import (
	"time"
)

// Default subscription limits.
const (
	DefaultMinPublishingInterval      = 50 * time.Millisecond
	DefaultMaxPublishingInterval      = time.Hour
	DefaultPublishingInterval         = 500 * time.Millisecond
	DefaultMaxKeepAliveCount          = 10
	DefaultMaxKeepAliveCountLimit     = 3600
	DefaultMaxLifetimeCount           = 3600 * 3
	DefaultMaxNotificationsPerPublish = 1000
	DefaultMaxMonitoredItemQueueSize  = 100
	DefaultMinSamplingInterval        = 50 * time.Millisecond
)

// SubscriptionLimits are the server bounds that client-requested
// subscription and monitoring parameters are revised against.
type SubscriptionLimits struct {
	// MinPublishingInterval is the fastest allowed publishing interval.
	MinPublishingInterval time.Duration

	// MaxPublishingInterval is the slowest allowed publishing interval.
	MaxPublishingInterval time.Duration

	// DefaultPublishingInterval substitutes a requested interval of 0.
	DefaultPublishingInterval time.Duration

	// MaxKeepAliveCount bounds the revised keep-alive count.
	MaxKeepAliveCount uint32

	// MaxLifetimeCount bounds the revised lifetime count.
	MaxLifetimeCount uint32

	// MaxNotificationsPerPublish substitutes a requested value of 0 and
	// bounds larger requests.
	MaxNotificationsPerPublish uint32

	// MaxMonitoredItemQueueSize bounds monitored item queue sizes.
	MaxMonitoredItemQueueSize uint32

	// MinSamplingInterval is the fastest allowed sampling interval.
	MinSamplingInterval time.Duration
}

// DefaultSubscriptionLimits returns the default server limits.
func DefaultSubscriptionLimits() SubscriptionLimits {
	return SubscriptionLimits{
		MinPublishingInterval:      DefaultMinPublishingInterval,
		MaxPublishingInterval:      DefaultMaxPublishingInterval,
		DefaultPublishingInterval:  DefaultPublishingInterval,
		MaxKeepAliveCount:          DefaultMaxKeepAliveCountLimit,
		MaxLifetimeCount:           DefaultMaxLifetimeCount,
		MaxNotificationsPerPublish: DefaultMaxNotificationsPerPublish,
		MaxMonitoredItemQueueSize:  DefaultMaxMonitoredItemQueueSize,
		MinSamplingInterval:        DefaultMinSamplingInterval,
	}
}

// ReviseSubscriptionParameters clamps client-requested subscription
// parameters to the server limits and enforces the protocol rule that the
// lifetime count is at least three times the keep-alive count. The
// revised values are returned to the client in the create and modify
// responses.
func (l SubscriptionLimits) ReviseSubscriptionParameters(requested SubscriptionParameters) SubscriptionParameters {
	revised := requested

	if revised.PublishingInterval <= 0 {
		revised.PublishingInterval = l.DefaultPublishingInterval
	}
	if revised.PublishingInterval < l.MinPublishingInterval {
		revised.PublishingInterval = l.MinPublishingInterval
	}
	if l.MaxPublishingInterval > 0 && revised.PublishingInterval > l.MaxPublishingInterval {
		revised.PublishingInterval = l.MaxPublishingInterval
	}

	if revised.MaxKeepAliveCount == 0 {
		revised.MaxKeepAliveCount = DefaultMaxKeepAliveCount
	}
	if l.MaxKeepAliveCount > 0 && revised.MaxKeepAliveCount > l.MaxKeepAliveCount {
		revised.MaxKeepAliveCount = l.MaxKeepAliveCount
	}

	// OPC UA spec: Part 4, Section 5.13.2 requires
	// lifetimeCount >= 3 * maxKeepAliveCount.
	if minLifetime := revised.MaxKeepAliveCount * 3; revised.LifetimeCount < minLifetime {
		revised.LifetimeCount = minLifetime
	}
	if l.MaxLifetimeCount > 0 && revised.LifetimeCount > l.MaxLifetimeCount {
		revised.LifetimeCount = l.MaxLifetimeCount
	}

	if revised.MaxNotificationsPerPublish == 0 ||
		(l.MaxNotificationsPerPublish > 0 && revised.MaxNotificationsPerPublish > l.MaxNotificationsPerPublish) {
		revised.MaxNotificationsPerPublish = l.MaxNotificationsPerPublish
	}

	return revised
}

// ReviseMonitoredItemParameters clamps client-requested monitoring
// parameters to the server limits.
func (l SubscriptionLimits) ReviseMonitoredItemParameters(requested MonitoredItemParameters) MonitoredItemParameters {
	revised := requested

	if revised.QueueSize == 0 {
		revised.QueueSize = 1
	}
	if l.MaxMonitoredItemQueueSize > 0 && revised.QueueSize > l.MaxMonitoredItemQueueSize {
		revised.QueueSize = l.MaxMonitoredItemQueueSize
	}
	if revised.SamplingInterval > 0 && revised.SamplingInterval < l.MinSamplingInterval {
		revised.SamplingInterval = l.MinSamplingInterval
	}
	return revised
}
