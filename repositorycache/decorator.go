package repositorycache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-record-cache/recordcache"
)

// CachedRepository decorates a base repository so that writes keep the
// cached fields of their records up to date. Reads pass through untouched;
// cached fields are read with recordcache.Store.
//
// The *Tx write methods defer cache updates to the commit only when ctx
// comes from RunInTx. Called with a transaction the caller manages, they
// update the cache right away, before that transaction commits, and log a
// warning.
type CachedRepository[T recordcache.Record] struct {
	base   repository.Repository[T]
	bridge *recordcache.Bridge
	logger *slog.Logger
}

// New creates a CachedRepository that reports writes on base to bridge.
func New[T recordcache.Record](base repository.Repository[T], bridge *recordcache.Bridge, logger *slog.Logger) *CachedRepository[T] {
	if logger == nil {
		logger = slog.Default().With("system", "recordcache")
	}
	return &CachedRepository[T]{
		base:   base,
		bridge: bridge,
		logger: logger.With("component", "repositorycache"),
	}
}

// Base returns the decorated repository.
func (c *CachedRepository[T]) Base() repository.Repository[T] {
	return c.base
}

// Get retrieves a single record using the provided criteria
func (c *CachedRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.Get(ctx, criteria...)
}

// GetByID retrieves a record by ID with optional criteria
func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByID(ctx, id, criteria...)
}

// List retrieves multiple records using the provided criteria
func (c *CachedRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.List(ctx, criteria...)
}

// Count returns the number of records matching the criteria
func (c *CachedRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.Count(ctx, criteria...)
}

// GetByIdentifier retrieves a record by identifier with optional criteria
func (c *CachedRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifier(ctx, identifier, criteria...)
}

// Create creates a new record and refreshes its cached fields
func (c *CachedRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.Create(ctx, record, criteria...)
	if err == nil {
		c.saved(ctx, "Create", result)
	}
	return result, err
}

// CreateTx creates a new record within a transaction
func (c *CachedRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.CreateTx(ctx, tx, record, criteria...)
	if err == nil {
		c.saved(ctx, "CreateTx", result)
	}
	return result, err
}

// CreateMany creates multiple records
func (c *CachedRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := c.base.CreateMany(ctx, records, criteria...)
	if err == nil {
		c.saved(ctx, "CreateMany", result...)
	}
	return result, err
}

// CreateManyTx creates multiple records within a transaction
func (c *CachedRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := c.base.CreateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.saved(ctx, "CreateManyTx", result...)
	}
	return result, err
}

// GetOrCreate gets a record or creates it if it doesn't exist
func (c *CachedRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	result, err := c.base.GetOrCreate(ctx, record)
	if err == nil {
		// the record may have been created, refreshing an existing one is harmless
		c.saved(ctx, "GetOrCreate", result)
	}
	return result, err
}

// GetOrCreateTx gets a record or creates it if it doesn't exist within a transaction
func (c *CachedRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	result, err := c.base.GetOrCreateTx(ctx, tx, record)
	if err == nil {
		c.saved(ctx, "GetOrCreateTx", result)
	}
	return result, err
}

// Update updates a record
func (c *CachedRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Update(ctx, record, criteria...)
	if err == nil {
		c.saved(ctx, "Update", result)
	}
	return result, err
}

// UpdateTx updates a record within a transaction
func (c *CachedRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.UpdateTx(ctx, tx, record, criteria...)
	if err == nil {
		c.saved(ctx, "UpdateTx", result)
	}
	return result, err
}

// UpdateMany updates multiple records
func (c *CachedRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateMany(ctx, records, criteria...)
	if err == nil {
		c.saved(ctx, "UpdateMany", result...)
	}
	return result, err
}

// UpdateManyTx updates multiple records within a transaction
func (c *CachedRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.saved(ctx, "UpdateManyTx", result...)
	}
	return result, err
}

// Upsert inserts or updates a record
func (c *CachedRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Upsert(ctx, record, criteria...)
	if err == nil {
		c.saved(ctx, "Upsert", result)
	}
	return result, err
}

// UpsertTx inserts or updates a record within a transaction
func (c *CachedRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.UpsertTx(ctx, tx, record, criteria...)
	if err == nil {
		c.saved(ctx, "UpsertTx", result)
	}
	return result, err
}

// UpsertMany inserts or updates multiple records
func (c *CachedRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertMany(ctx, records, criteria...)
	if err == nil {
		c.saved(ctx, "UpsertMany", result...)
	}
	return result, err
}

// UpsertManyTx inserts or updates multiple records within a transaction
func (c *CachedRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertManyTx(ctx, tx, records, criteria...)
	if err == nil {
		c.saved(ctx, "UpsertManyTx", result...)
	}
	return result, err
}

// Delete deletes a record and removes its cache entry
func (c *CachedRepository[T]) Delete(ctx context.Context, record T) error {
	err := c.base.Delete(ctx, record)
	if err == nil {
		c.destroyed(ctx, "Delete", record)
	}
	return err
}

// DeleteTx deletes a record within a transaction
func (c *CachedRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.DeleteTx(ctx, tx, record)
	if err == nil {
		c.destroyed(ctx, "DeleteTx", record)
	}
	return err
}

// DeleteMany deletes records matching criteria. The deleted records are not
// known, so their cache entries are left in place.
func (c *CachedRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteMany(ctx, criteria...)
	if err == nil {
		c.bypassed("DeleteMany")
	}
	return err
}

// DeleteManyTx deletes records matching criteria within a transaction
func (c *CachedRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteManyTx(ctx, tx, criteria...)
	if err == nil {
		c.bypassed("DeleteManyTx")
	}
	return err
}

// DeleteWhere deletes records matching criteria. Like DeleteMany it leaves
// cache entries in place.
func (c *CachedRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteWhere(ctx, criteria...)
	if err == nil {
		c.bypassed("DeleteWhere")
	}
	return err
}

// DeleteWhereTx deletes records matching criteria within a transaction
func (c *CachedRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteWhereTx(ctx, tx, criteria...)
	if err == nil {
		c.bypassed("DeleteWhereTx")
	}
	return err
}

// ForceDelete permanently deletes a record
func (c *CachedRepository[T]) ForceDelete(ctx context.Context, record T) error {
	err := c.base.ForceDelete(ctx, record)
	if err == nil {
		c.destroyed(ctx, "ForceDelete", record)
	}
	return err
}

// ForceDeleteTx permanently deletes a record within a transaction
func (c *CachedRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	err := c.base.ForceDeleteTx(ctx, tx, record)
	if err == nil {
		c.destroyed(ctx, "ForceDeleteTx", record)
	}
	return err
}

// GetTx retrieves a record within a transaction
func (c *CachedRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetTx(ctx, tx, criteria...)
}

// GetByIDTx retrieves a record by ID within a transaction
func (c *CachedRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIDTx(ctx, tx, id, criteria...)
}

// ListTx retrieves multiple records within a transaction
func (c *CachedRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.ListTx(ctx, tx, criteria...)
}

// CountTx counts records within a transaction
func (c *CachedRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.CountTx(ctx, tx, criteria...)
}

// GetByIdentifierTx retrieves a record by identifier within a transaction
func (c *CachedRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifierTx(ctx, tx, identifier, criteria...)
}

// Raw executes a raw SQL query
func (c *CachedRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	return c.base.Raw(ctx, sql, args...)
}

// RawTx executes a raw SQL query within a transaction
func (c *CachedRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	return c.base.RawTx(ctx, tx, sql, args...)
}

// Handlers returns the model handlers
func (c *CachedRepository[T]) Handlers() repository.ModelHandlers[T] {
	return c.base.Handlers()
}

func (c *CachedRepository[T]) saved(ctx context.Context, method string, records ...T) {
	c.track(ctx, method, c.bridge.OnSave, records)
}

func (c *CachedRepository[T]) destroyed(ctx context.Context, method string, records ...T) {
	c.track(ctx, method, c.bridge.OnDestroy, records)
}

// track reports records to the bridge. With an ExecutionContext in ctx, as
// set up by RunInTx, the operations wait for the surrounding commit.
// Otherwise the write has already happened and they are applied right away.
//
// Cache errors are logged and never fail the write that caused them.
func (c *CachedRepository[T]) track(ctx context.Context, method string, hook func(*recordcache.ExecutionContext, recordcache.Record) error, records []T) {
	ec, ambient := recordcache.ExecutionContextFrom(ctx)
	if !ambient {
		ec = recordcache.NewExecutionContext()
		if strings.HasSuffix(method, "Tx") {
			c.logger.Warn("cache updated before the caller's transaction commits, use RunInTx to defer it",
				"method", method,
			)
		}
	}

	for _, record := range records {
		if err := hook(ec, record); err != nil {
			c.logger.Error("cache hook failed",
				"method", method,
				"record", fmt.Sprintf("%T", record),
				"error", err,
			)
			if !ambient {
				c.bridge.OnRollback(ec)
			}
			return
		}
	}

	if ambient {
		return
	}
	// failed operations are logged by the bridge
	_ = c.bridge.OnCommit(ctx, ec)
}

func (c *CachedRepository[T]) bypassed(method string) {
	c.logger.Debug("criteria write bypasses the record cache", "method", method)
}
