package utils

import (
	"context"
	"testing"
	"time"
)

func TestRedisConfig_Defaults(t *testing.T) {
	cfg := RedisConfig{}.withDefaults()
	if cfg.DialTimeout <= 0 || cfg.ReadTimeout <= 0 || cfg.WriteTimeout <= 0 {
		t.Fatalf("expected positive timeouts, got %+v", cfg)
	}
	if cfg.PoolSize <= 0 {
		t.Fatalf("expected positive pool size, got %d", cfg.PoolSize)
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	_, err := OpenRedis(context.Background(), RedisConfig{})
	if err == nil {
		t.Fatalf("expected error for missing addr")
	}
}

func TestAllowRate_RejectsInvalidArgs(t *testing.T) {
	ctx := context.Background()

	if _, err := AllowRate(ctx, nil, "k", 10, time.Second); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
