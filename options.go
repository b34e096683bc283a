package uasub

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	logger                     Logger
	metrics                    Metrics
	scheduler                  Scheduler
	codec                      NotificationCodec
	limits                     SubscriptionLimits
	maxRetransmissionQueueSize int
	maxSubscriptionsPerSession int
}

func defaultServerConfig() *serverConfig {
	return &serverConfig{
		logger:                     NewNoOpLogger(),
		metrics:                    &NoOpMetrics{},
		codec:                      NewCBORNotificationCodec(),
		limits:                     DefaultSubscriptionLimits(),
		maxRetransmissionQueueSize: 32,
		maxSubscriptionsPerSession: 0, // unlimited
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) ServerOption {
	return func(c *serverConfig) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics Metrics) ServerOption {
	return func(c *serverConfig) {
		c.metrics = metrics
	}
}

// WithScheduler sets the repeated callback scheduler. When unset the
// server starts its own TimerScheduler.
func WithScheduler(scheduler Scheduler) ServerOption {
	return func(c *serverConfig) {
		c.scheduler = scheduler
	}
}

// WithNotificationCodec sets the codec used to store notification
// messages in the retransmission queue.
func WithNotificationCodec(codec NotificationCodec) ServerOption {
	return func(c *serverConfig) {
		c.codec = codec
	}
}

// WithSubscriptionLimits sets the parameter revision limits.
func WithSubscriptionLimits(limits SubscriptionLimits) ServerOption {
	return func(c *serverConfig) {
		c.limits = limits
	}
}

// WithMaxRetransmissionQueueSize bounds the per-subscription
// retransmission queue. 0 means unlimited.
func WithMaxRetransmissionQueueSize(n int) ServerOption {
	return func(c *serverConfig) {
		c.maxRetransmissionQueueSize = n
	}
}

// WithMaxSubscriptionsPerSession bounds the number of subscriptions one
// session may create. 0 means unlimited.
func WithMaxSubscriptionsPerSession(n int) ServerOption {
	return func(c *serverConfig) {
		c.maxSubscriptionsPerSession = n
	}
}
