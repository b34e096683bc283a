package uasub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReviseSubscriptionParameters(t *testing.T) {
	limits := DefaultSubscriptionLimits()

	t.Run("zero publishing interval gets the default", func(t *testing.T) {
		revised := limits.ReviseSubscriptionParameters(SubscriptionParameters{})
		assert.Equal(t, DefaultPublishingInterval, revised.PublishingInterval)
	})

	t.Run("interval clamped to minimum", func(t *testing.T) {
		revised := limits.ReviseSubscriptionParameters(SubscriptionParameters{
			PublishingInterval: time.Millisecond,
		})
		assert.Equal(t, limits.MinPublishingInterval, revised.PublishingInterval)
	})

	t.Run("interval clamped to maximum", func(t *testing.T) {
		revised := limits.ReviseSubscriptionParameters(SubscriptionParameters{
			PublishingInterval: 48 * time.Hour,
		})
		assert.Equal(t, limits.MaxPublishingInterval, revised.PublishingInterval)
	})

	t.Run("zero keep-alive count gets the default", func(t *testing.T) {
		revised := limits.ReviseSubscriptionParameters(SubscriptionParameters{})
		assert.Equal(t, uint32(DefaultMaxKeepAliveCount), revised.MaxKeepAliveCount)
	})

	t.Run("lifetime raised to three times keep-alive", func(t *testing.T) {
		revised := limits.ReviseSubscriptionParameters(SubscriptionParameters{
			MaxKeepAliveCount: 20,
			LifetimeCount:     5,
		})
		assert.Equal(t, uint32(60), revised.LifetimeCount)
	})

	t.Run("lifetime above the rule is kept", func(t *testing.T) {
		revised := limits.ReviseSubscriptionParameters(SubscriptionParameters{
			MaxKeepAliveCount: 5,
			LifetimeCount:     100,
		})
		assert.Equal(t, uint32(100), revised.LifetimeCount)
	})

	t.Run("zero notifications per publish gets the server maximum", func(t *testing.T) {
		revised := limits.ReviseSubscriptionParameters(SubscriptionParameters{})
		assert.Equal(t, uint32(DefaultMaxNotificationsPerPublish), revised.MaxNotificationsPerPublish)
	})

	t.Run("notifications per publish clamped", func(t *testing.T) {
		revised := limits.ReviseSubscriptionParameters(SubscriptionParameters{
			MaxNotificationsPerPublish: 1 << 30,
		})
		assert.Equal(t, uint32(DefaultMaxNotificationsPerPublish), revised.MaxNotificationsPerPublish)
	})
}

func TestReviseMonitoredItemParameters(t *testing.T) {
	limits := DefaultSubscriptionLimits()

	t.Run("zero queue size becomes one", func(t *testing.T) {
		revised := limits.ReviseMonitoredItemParameters(MonitoredItemParameters{})
		assert.Equal(t, uint32(1), revised.QueueSize)
	})

	t.Run("queue size clamped", func(t *testing.T) {
		revised := limits.ReviseMonitoredItemParameters(MonitoredItemParameters{
			QueueSize: 1 << 20,
		})
		assert.Equal(t, uint32(DefaultMaxMonitoredItemQueueSize), revised.QueueSize)
	})

	t.Run("sampling interval clamped to minimum", func(t *testing.T) {
		revised := limits.ReviseMonitoredItemParameters(MonitoredItemParameters{
			SamplingInterval: time.Microsecond,
		})
		assert.Equal(t, limits.MinSamplingInterval, revised.SamplingInterval)
	})

	t.Run("zero sampling interval stays zero", func(t *testing.T) {
		revised := limits.ReviseMonitoredItemParameters(MonitoredItemParameters{})
		assert.Equal(t, time.Duration(0), revised.SamplingInterval)
	})
}
