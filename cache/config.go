package cache

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-record-cache/internal/cacheinfra"
)

// DefaultTimeout bounds every backend call unless configured otherwise.
const DefaultTimeout = 15 * time.Second

// Config holds the process-scope settings shared by every execution context.
type Config struct {
	// Enabled is the master switch. A disabled cache starts with the breaker
	// open: reads always recompute and writes are dropped.
	Enabled bool

	// WriteOnly keeps writing cache entries but never serves reads from the
	// backend; every read recomputes.
	WriteOnly bool

	// Timeout bounds each backend call.
	Timeout time.Duration

	// RedisURL selects the Redis backend, e.g. redis://localhost:6379/0.
	// When empty the in-process Local store is used.
	RedisURL string

	// Local configures the in-process store.
	Local LocalConfig

	// Name labels the metrics of gateways built from this config, so several
	// caches in one process report separately. Defaults to "default".
	Name string

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// LocalConfig mirrors the in-process store options.
type LocalConfig struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		WriteOnly: false,
		Timeout:   DefaultTimeout,
		Local:     convertFromInternal(cacheinfra.DefaultLocalConfig()),
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Timeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.RedisURL, validation.By(validRedisURL)),
	)
	if err != nil {
		return err
	}
	if c.RedisURL == "" {
		return c.Local.toInternal().Validate()
	}
	return nil
}

// NewBackend constructs the backend selected by cfg. The Redis backend is
// pinged once so a misconfigured URL fails at startup rather than tripping
// the breaker on first use.
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.RedisURL != "" {
		return cacheinfra.NewRedisBackendFromURL(ctx, cfg.RedisURL)
	}
	return cacheinfra.NewLocalBackend(cfg.Local.toInternal())
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default().With("system", "recordcache")
}

func (c Config) name() string {
	if c.Name != "" {
		return c.Name
	}
	return "default"
}

func validRedisURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil {
		return validation.NewError("validation_redis_url", "must be a valid URL")
	}
	switch u.Scheme {
	case "redis", "rediss", "unix":
		return nil
	default:
		return validation.NewError("validation_redis_scheme", "must use the redis, rediss or unix scheme")
	}
}

func (c LocalConfig) toInternal() cacheinfra.LocalConfig {
	return cacheinfra.LocalConfig{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

func convertFromInternal(cfg cacheinfra.LocalConfig) LocalConfig {
	return LocalConfig{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}
