package di

import (
	"context"
	"database/sql"
	"io"
	"log/slog"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-record-cache/cache"
	"github.com/goliatone/go-record-cache/recordcache"
	"github.com/goliatone/go-record-cache/repositorycache"
)

// Container wires the record cache components for one process: backend,
// gateway, registry, store, bridge and verifier. It provides factory methods
// for cached repositories.
type Container struct {
	config   cache.Config
	logger   *slog.Logger
	backend  cache.Backend
	gateway  *cache.Gateway
	registry *recordcache.Registry
	store    *recordcache.Store
	bridge   *recordcache.Bridge
	verifier *recordcache.Verifier
}

// NewContainer creates a container with the backend selected by config:
// Redis when RedisURL is set, the in-process store otherwise.
func NewContainer(ctx context.Context, config cache.Config) (*Container, error) {
	backend, err := cache.NewBackend(ctx, config)
	if err != nil {
		return nil, err
	}
	return NewContainerWithBackend(config, backend)
}

// NewContainerWithBackend creates a container over an existing backend.
func NewContainerWithBackend(config cache.Config, backend cache.Backend) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("system", "recordcache")
		config.Logger = logger
	}

	gateway := cache.NewGateway(backend, config)
	registry := recordcache.NewRegistry()
	store := recordcache.NewStore(registry, gateway, config)

	return &Container{
		config:   config,
		logger:   logger,
		backend:  backend,
		gateway:  gateway,
		registry: registry,
		store:    store,
		bridge:   recordcache.NewBridge(store, logger),
		verifier: recordcache.NewVerifier(store),
	}, nil
}

// NewContainerWithDefaults creates a container using default configuration
// and the in-process store.
func NewContainerWithDefaults(ctx context.Context) (*Container, error) {
	return NewContainer(ctx, cache.DefaultConfig())
}

// Register adds record type declarations to the container registry.
func (c *Container) Register(types ...*recordcache.TypeConfig) error {
	return c.registry.Register(types...)
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() cache.Config {
	return c.config
}

// Logger returns the container logger.
func (c *Container) Logger() *slog.Logger {
	return c.logger
}

// Backend returns the raw backend, bypassing the circuit breaker.
func (c *Container) Backend() cache.Backend {
	return c.backend
}

// Gateway returns the breaker-guarded backend.
func (c *Container) Gateway() *cache.Gateway {
	return c.gateway
}

// Registry returns the record type registry.
func (c *Container) Registry() *recordcache.Registry {
	return c.registry
}

// Store returns the attribute store used to read cached fields.
func (c *Container) Store() *recordcache.Store {
	return c.store
}

// Bridge returns the transaction bridge.
func (c *Container) Bridge() *recordcache.Bridge {
	return c.bridge
}

// Verifier returns the cache verifier.
func (c *Container) Verifier() *recordcache.Verifier {
	return c.verifier
}

// RunInTx runs fn in a transaction on db and applies the cache updates of
// the writes made with fn's context after commit.
func (c *Container) RunInTx(ctx context.Context, db repositorycache.TxRunner, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	return repositorycache.RunInTx(ctx, db, c.bridge, opts, fn)
}

// Close releases the backend when it holds resources, such as a Redis client.
func (c *Container) Close() error {
	if closer, ok := c.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// NewCachedRepository creates a cached repository that wraps the provided base repository.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewCachedRepository[*User](container, baseUserRepository)
func NewCachedRepository[T recordcache.Record](container *Container, base repository.Repository[T]) *repositorycache.CachedRepository[T] {
	return repositorycache.New(base, container.bridge, container.logger)
}
