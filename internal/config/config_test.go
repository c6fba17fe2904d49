package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPAddress != ":8080" {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.StorageBackend != "postgres" {
		t.Fatalf("unexpected storage backend %q", cfg.StorageBackend)
	}
	if cfg.OutboxPollInterval != 2*time.Second {
		t.Fatalf("unexpected poll interval %s", cfg.OutboxPollInterval)
	}
	if cfg.ParserMaxAttempts != 3 {
		t.Fatalf("unexpected parser attempts %d", cfg.ParserMaxAttempts)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "kafka:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.JWTIssuer != "workoutlog.identity" {
		t.Fatalf("unexpected jwt issuer %q", cfg.JWTIssuer)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,")
	t.Setenv("OUTBOX_BATCH_SIZE", "100")
	t.Setenv("PARSER_TIMEOUT", "5s")
	t.Setenv("PARSER_BASE_DELAY", "not-a-duration")

	cfg := Load()

	if cfg.StorageBackend != "memory" {
		t.Fatalf("unexpected storage backend %q", cfg.StorageBackend)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.OutboxBatchSize != 100 {
		t.Fatalf("unexpected batch size %d", cfg.OutboxBatchSize)
	}
	if cfg.ParserTimeout != 5*time.Second {
		t.Fatalf("unexpected parser timeout %s", cfg.ParserTimeout)
	}
	if cfg.ParserBaseDelay != 250*time.Millisecond {
		t.Fatalf("malformed duration should fall back, got %s", cfg.ParserBaseDelay)
	}
}
