package saga

import (
	"time"

	"go.uber.org/zap"
)

const (
	defaultQueueCapacity = 64
	defaultRetention     = 1024
	defaultRetentionTTL  = 5 * time.Minute
)

// Config holds the tunables of a Scheduler. Non-positive values fall back
// to defaults.
type Config struct {
	QueueCapacity int           // default: 64, initial capacity of the loop queue
	Retention     int           // default: 1024, finished snapshots kept for Lookup
	RetentionTTL  time.Duration // default: 5m
	Logger        *zap.Logger   // default: zap.NewProduction()
}

// Option configures a Scheduler at construction time.
type Option func(*Config)

// WithLogger sets the logger used for lifecycle logs and by log effects.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithQueueCapacity sets the initial capacity of the loop queue. The queue
// is unbounded; this only sizes the first allocation.
func WithQueueCapacity(n int) Option {
	return func(c *Config) {
		c.QueueCapacity = n
	}
}

// WithRetention bounds how many finished executions stay visible to
// Scheduler.Lookup, and for how long.
func WithRetention(entries int, ttl time.Duration) Option {
	return func(c *Config) {
		c.Retention = entries
		c.RetentionTTL = ttl
	}
}

// NewConfig applies opts over the defaults.
func NewConfig(opts ...Option) Config {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.normalize()
}

func (c Config) normalize() Config {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = defaultQueueCapacity
	}
	if c.Retention <= 0 {
		c.Retention = defaultRetention
	}
	if c.RetentionTTL <= 0 {
		c.RetentionTTL = defaultRetentionTTL
	}
	if c.Logger == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			logger = zap.NewNop()
		}
		c.Logger = logger
	}
	return c
}
