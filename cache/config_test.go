package cache

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-record-cache/internal/cacheinfra"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Enabled {
		t.Error("expected cache to be enabled by default")
	}
	if cfg.WriteOnly {
		t.Error("expected write-only mode to be off by default")
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("expected Timeout to be 15s, got %v", cfg.Timeout)
	}
	if cfg.RedisURL != "" {
		t.Errorf("expected local backend by default, got %q", cfg.RedisURL)
	}
	if cfg.Local.Capacity != cacheinfra.DefaultLocalConfig().Capacity {
		t.Errorf("expected local defaults to mirror cacheinfra, got %+v", cfg.Local)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to be valid, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero timeout", mutate: func(c *Config) { c.Timeout = 0 }, wantError: true},
		{name: "sub millisecond timeout", mutate: func(c *Config) { c.Timeout = time.Microsecond }, wantError: true},
		{name: "redis url", mutate: func(c *Config) { c.RedisURL = "redis://localhost:6379/0" }},
		{name: "redis url skips local validation", mutate: func(c *Config) {
			c.RedisURL = "rediss://cache.internal:6380"
			c.Local.Capacity = 0
		}},
		{name: "http scheme", mutate: func(c *Config) { c.RedisURL = "http://localhost:6379" }, wantError: true},
		{name: "invalid local capacity", mutate: func(c *Config) { c.Local.Capacity = 0 }, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantError && err == nil {
				t.Error("expected validation error but got none")
			}
			if !tt.wantError && err != nil {
				t.Errorf("expected no validation error but got: %v", err)
			}
		})
	}
}

func TestNewBackend_DefaultsToLocal(t *testing.T) {
	backend, err := NewBackend(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("NewBackend() error = %v", err)
	}
	if _, ok := backend.(*cacheinfra.LocalBackend); !ok {
		t.Errorf("expected *cacheinfra.LocalBackend, got %T", backend)
	}
}

func TestNewBackend_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	if _, err := NewBackend(context.Background(), cfg); err == nil {
		t.Error("expected error for invalid config")
	}
}
