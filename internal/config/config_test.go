package config

import (
	"testing"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	t.Setenv("TEST_INT", "123")
	t.Setenv("TEST_INT_BAD", "abc")
	t.Setenv("TEST_BOOL_TRUE", "yes")
	t.Setenv("TEST_BOOL_FALSE", "0")

	if v := getEnv("TEST_STR", ""); v != "value" {
		t.Fatalf("expected value, got %s", v)
	}
	if v := getEnvAsInt("TEST_INT", 0); v != 123 {
		t.Fatalf("expected 123, got %d", v)
	}
	if v := getEnvAsInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("expected fallback 7, got %d", v)
	}
	if !getEnvAsBool("TEST_BOOL_TRUE", false) {
		t.Fatalf("expected true")
	}
	if getEnvAsBool("TEST_BOOL_FALSE", true) {
		t.Fatalf("expected false")
	}
	if !getEnvAsBool("TEST_BOOL_MISSING", true) {
		t.Fatalf("expected default for missing bool")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	cfg := Load()
	if cfg.Orders.NumberPrefix != "SA" {
		t.Fatalf("expected SA order prefix, got %q", cfg.Orders.NumberPrefix)
	}
	if cfg.Orders.StrictStatusTransitions {
		t.Fatalf("expected permissive status transitions by default")
	}
	if cfg.OTP.TTLMinutes != 10 || cfg.OTP.MaxAttempts != 5 {
		t.Fatalf("unexpected otp defaults: %+v", cfg.OTP)
	}
	if cfg.Auth.CookieName != "auth-token" || cfg.Auth.TokenTTLHours != 168 {
		t.Fatalf("unexpected auth defaults: %+v", cfg.Auth)
	}
	if cfg.Notify.Transport != "kafka" {
		t.Fatalf("expected kafka notify transport, got %q", cfg.Notify.Transport)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ORDER_STRICT_STATUS_TRANSITIONS", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("NOTIFY_TRANSPORT", "direct")

	cfg := Load()
	if !cfg.Orders.StrictStatusTransitions {
		t.Fatalf("expected strict transitions")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.Notify.Transport != "direct" {
		t.Fatalf("expected direct transport")
	}
}
