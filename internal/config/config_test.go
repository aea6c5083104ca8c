package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ServerPort == "" {
		t.Fatalf("expected default server port")
	}
	if cfg.PostgresURL == "" {
		t.Fatalf("expected default postgres url")
	}
	if cfg.KafkaTopicPrefix != "lakbay" {
		t.Fatalf("expected default topic prefix")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("POSTGRES_URL", "postgres://example")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("HISTORY_SOURCE", "fixture")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg := Load()
	if cfg.ServerPort != ":9000" {
		t.Fatalf("expected override port")
	}
	if cfg.PostgresURL != "postgres://example" {
		t.Fatalf("expected override postgres")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Fatalf("expected override redis")
	}
	if cfg.JWTSecret != "secret" {
		t.Fatalf("expected override secret")
	}
	if cfg.HistorySource != "fixture" {
		t.Fatalf("expected override history source")
	}
	brokers := cfg.Brokers()
	if len(brokers) != 2 || brokers[0] != "kafka-1:9092" || brokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", brokers)
	}
}

func TestBrokersEmpty(t *testing.T) {
	if got := (Config{}).Brokers(); len(got) != 0 {
		t.Fatalf("expected no brokers, got %v", got)
	}
}

func TestLoadClientDefaults(t *testing.T) {
	cfg := LoadClient()
	if cfg.APIURL == "" || cfg.StorePath == "" {
		t.Fatalf("expected default api url and store path")
	}
	if cfg.RetryAttempts != 3 || cfg.RetryDelay != time.Second {
		t.Fatalf("unexpected retry defaults: %d %v", cfg.RetryAttempts, cfg.RetryDelay)
	}
	if cfg.SamplingInterval != time.Second {
		t.Fatalf("unexpected sampling interval: %v", cfg.SamplingInterval)
	}
}

func TestLoadClientEnvOverrides(t *testing.T) {
	t.Setenv("LAKBAY_API_URL", "http://api.test/api")
	t.Setenv("LAKBAY_SAMPLING_INTERVAL", "250ms")
	t.Setenv("LAKBAY_BODY_MASS_KG", "64.5")
	t.Setenv("LAKBAY_RETRY_DELAY", "2s")

	cfg := LoadClient()
	if cfg.APIURL != "http://api.test/api" {
		t.Fatalf("expected override api url")
	}
	if cfg.SamplingInterval != 250*time.Millisecond {
		t.Fatalf("unexpected interval %v", cfg.SamplingInterval)
	}
	if cfg.BodyMassKg != 64.5 {
		t.Fatalf("unexpected mass %v", cfg.BodyMassKg)
	}
	if cfg.RetryDelay != 2*time.Second {
		t.Fatalf("unexpected retry delay %v", cfg.RetryDelay)
	}
}
