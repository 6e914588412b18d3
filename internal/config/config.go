package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	StoreDriver      string `env:"STORE_DRIVER,default=postgres"`
	DatabaseDSN      string `env:"DATABASE_DSN"`
	RedisURL         string `env:"REDIS_URL"`
	RabbitMQURL      string `env:"RABBITMQ_URL"`
	EventsQueue      string `env:"EVENTS_QUEUE,default=ops.notification.events"`
	ConsumerPrefetch int    `env:"CONSUMER_PREFETCH,default=16"`

	RateLimitPerSec    int    `env:"RATE_LIMIT_PER_SEC,default=100"`
	RateLimitOverrides string `env:"RATE_LIMIT_OVERRIDES"`

	DispatchIntervalMS   int    `env:"DISPATCH_INTERVAL_MS,default=5000"`
	DispatchBatchSize    int    `env:"DISPATCH_BATCH_SIZE,default=50"`
	DispatchConcurrency  int    `env:"DISPATCH_CONCURRENCY,default=8"`
	StaleProcessingSec   int    `env:"STALE_PROCESSING_SEC,default=300"`
	RetryPolicy          string `env:"RETRY_POLICY,default=linear"`
	RetryBaseDelayMS     int    `env:"RETRY_BASE_DELAY_MS,default=30000"`
	RetryMaxDelayMS      int    `env:"RETRY_MAX_DELAY_MS,default=900000"`
	ChannelSendTimeoutMS int    `env:"CHANNEL_SEND_TIMEOUT_MS,default=10000"`

	APIPort  int    `env:"API_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("failed to load config: DATABASE_DSN is required for the postgres store")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("failed to load config: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.DispatchIntervalMS <= 0 || c.DispatchBatchSize <= 0 || c.DispatchConcurrency <= 0 {
		return fmt.Errorf("failed to load config: dispatch interval, batch size and concurrency must be positive")
	}
	return nil
}

func (c *Config) DispatchInterval() time.Duration {
	return time.Duration(c.DispatchIntervalMS) * time.Millisecond
}

func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleProcessingSec) * time.Second
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMS) * time.Millisecond
}

func (c *Config) ChannelSendTimeout() time.Duration {
	return time.Duration(c.ChannelSendTimeoutMS) * time.Millisecond
}
