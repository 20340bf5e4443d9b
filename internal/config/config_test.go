package config

import (
	"testing"
	"time"
)

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func validBase() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "callcard", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "callcard"
	c.Auth.JWTAudience = "callcard-api"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_KafkaTopicRequiredWithBrokers(t *testing.T) {
	c := validBase()
	c.Kafka.Brokers = []string{"localhost:9092"}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for brokers without topic")
	}
	c.Kafka.Topic = "audit-events"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_VoucherDefaults(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Voucher.AllocatorMaxAttempts != 5 {
		t.Fatalf("expected default allocator attempts 5, got %d", c.Voucher.AllocatorMaxAttempts)
	}
	if c.Voucher.StorageTimeout != 5*time.Second {
		t.Fatalf("expected default storage timeout 5s, got %v", c.Voucher.StorageTimeout)
	}
	if c.RateLimit.ValidatePerWindow != 30 || c.RateLimit.ValidateWindow != time.Minute {
		t.Fatalf("expected default rate limit 30/min, got %+v", c.RateLimit)
	}
}
