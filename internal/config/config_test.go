package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("LEDGER_STORE_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Ledger.StoreBackend != BackendMemory {
		t.Errorf("Expected memory backend, got %s", cfg.Ledger.StoreBackend)
	}
	if !cfg.Ledger.AllowOversell {
		t.Error("Oversell should be allowed by default")
	}
	if len(cfg.Ledger.DeferredPaymentMethods) != 1 || cfg.Ledger.DeferredPaymentMethods[0] != "bank_transfer" {
		t.Errorf("Unexpected deferred payment methods: %v", cfg.Ledger.DeferredPaymentMethods)
	}
	if cfg.Kafka.Enabled() {
		t.Error("Kafka should be disabled without brokers")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("LEDGER_STORE_BACKEND", "redis")
	t.Setenv("LEDGER_ALLOW_OVERSELL", "false")
	t.Setenv("LEDGER_DEFERRED_PAYMENT_METHODS", "bank_transfer, cheque")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("REDIS_LOCK_TTL", "2s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Ledger.AllowOversell {
		t.Error("Oversell should be disabled")
	}
	if got := cfg.Ledger.DeferredPaymentMethods; len(got) != 2 || got[1] != "cheque" {
		t.Errorf("Unexpected deferred payment methods: %v", got)
	}
	if !cfg.Kafka.Enabled() || len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("Unexpected kafka config: %+v", cfg.Kafka)
	}
	if cfg.Redis.LockTTL != 2*time.Second {
		t.Errorf("Expected lock ttl 2s, got %s", cfg.Redis.LockTTL)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("LEDGER_STORE_BACKEND", "sqlite")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("LEDGER_STORE_BACKEND", "")

	if _, err := Load(); err == nil {
		t.Error("Expected error without JWT secret")
	}
}
