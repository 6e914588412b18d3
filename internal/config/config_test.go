package config

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "host=localhost user=test password=test dbname=test port=5432 sslmode=disable")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", cfg.APIPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.RateLimitPerSec != 100 {
		t.Errorf("RateLimitPerSec = %d, want 100", cfg.RateLimitPerSec)
	}
	if cfg.EventsQueue != "ops.notification.events" {
		t.Errorf("EventsQueue = %s, want ops.notification.events", cfg.EventsQueue)
	}
	if cfg.DispatchInterval() != 5*time.Second {
		t.Errorf("DispatchInterval() = %s, want 5s", cfg.DispatchInterval())
	}
	if cfg.DispatchBatchSize != 50 || cfg.DispatchConcurrency != 8 {
		t.Errorf("batch/concurrency = %d/%d, want 50/8", cfg.DispatchBatchSize, cfg.DispatchConcurrency)
	}
	if cfg.StaleAfter() != 5*time.Minute {
		t.Errorf("StaleAfter() = %s, want 5m", cfg.StaleAfter())
	}
	if cfg.RetryPolicy != "linear" {
		t.Errorf("RetryPolicy = %s, want linear", cfg.RetryPolicy)
	}
	if cfg.RetryBaseDelay() != 30*time.Second || cfg.RetryMaxDelay() != 15*time.Minute {
		t.Errorf("retry delays = %s/%s, want 30s/15m", cfg.RetryBaseDelay(), cfg.RetryMaxDelay())
	}
	if cfg.ChannelSendTimeout() != 10*time.Second {
		t.Errorf("ChannelSendTimeout() = %s, want 10s", cfg.ChannelSendTimeout())
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("API_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_PER_SEC", "250")
	t.Setenv("RATE_LIMIT_OVERRIDES", "sms=5")
	t.Setenv("DISPATCH_INTERVAL_MS", "250")
	t.Setenv("RETRY_POLICY", "exponential")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.APIPort != 9090 {
		t.Errorf("APIPort = %d, want 9090", cfg.APIPort)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	if cfg.RateLimitPerSec != 250 || cfg.RateLimitOverrides != "sms=5" {
		t.Errorf("rate limits = %d %q", cfg.RateLimitPerSec, cfg.RateLimitOverrides)
	}
	if cfg.DispatchInterval() != 250*time.Millisecond {
		t.Errorf("DispatchInterval() = %s, want 250ms", cfg.DispatchInterval())
	}
	if cfg.RetryPolicy != "exponential" {
		t.Errorf("RetryPolicy = %s, want exponential", cfg.RetryPolicy)
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DATABASE_DSN, got nil")
	}
}

func TestLoad_MemoryStoreNeedsNoDSN(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("DATABASE_DSN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.StoreDriver != StoreDriverMemory {
		t.Errorf("StoreDriver = %s, want memory", cfg.StoreDriver)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unknown store", key: "STORE_DRIVER", value: "sqlite"},
		{name: "zero batch", key: "DISPATCH_BATCH_SIZE", value: "0"},
		{name: "negative concurrency", key: "DISPATCH_CONCURRENCY", value: "-1"},
		{name: "not a number", key: "API_PORT", value: "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
