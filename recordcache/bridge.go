package recordcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Bridge connects host persistence events to the update queue of an
// ExecutionContext. Saves and destroys only enqueue work; the backend is
// touched when OnCommit applies the queue.
type Bridge struct {
	registry *Registry
	store    *Store
	logger   *slog.Logger
}

// NewBridge returns a Bridge applying queued operations through store.
func NewBridge(store *Store, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default().With("system", "recordcache")
	}
	return &Bridge{
		registry: store.Registry(),
		store:    store,
		logger:   logger.With("component", "bridge"),
	}
}

// OnSave enqueues a write for rec, when its type has cached fields, followed
// by a write for every record its invalidation fields resolve to.
func (b *Bridge) OnSave(ec *ExecutionContext, rec Record) error {
	return b.record(ec, rec, OpWrite)
}

// OnDestroy enqueues a removal for rec, when its type has cached fields,
// followed by a write for every record its invalidation fields resolve to.
func (b *Bridge) OnDestroy(ec *ExecutionContext, rec Record) error {
	return b.record(ec, rec, OpRemove)
}

// OnCommit applies the queued operations in enqueue order. The queue is
// emptied before anything runs, so it is clear whatever happens. Records
// without identity are skipped; other failures are joined in the result.
// Backend failures never surface here: they trip the gateway breaker.
func (b *Bridge) OnCommit(ctx context.Context, ec *ExecutionContext) error {
	if ec == nil {
		return ErrNoExecutionContext
	}
	ops := ec.take()

	var errs []error
	for _, op := range ops {
		var err error
		switch op.Kind {
		case OpWrite:
			err = b.store.WriteAll(ctx, op.Record)
		case OpRemove:
			err = b.store.RemoveAll(ctx, op.Record)
		default:
			err = fmt.Errorf("recordcache: unknown operation %s", op.Kind)
		}
		switch {
		case err == nil:
			queueApplied.WithLabelValues(op.Kind.String(), "ok").Inc()
		case errors.Is(err, ErrNoIdentity):
			queueApplied.WithLabelValues(op.Kind.String(), "skipped").Inc()
			b.logger.Warn("skipping cache operation for record without identity",
				"op", op.Kind.String(),
				"record", fmt.Sprintf("%T", op.Record),
			)
		default:
			queueApplied.WithLabelValues(op.Kind.String(), "failed").Inc()
			b.logger.Error("cache operation failed",
				"op", op.Kind.String(),
				"record", fmt.Sprintf("%T", op.Record),
				"error", err,
			)
			errs = append(errs, err)
		}
	}

	if len(ops) > 0 {
		b.logger.Debug("applied cache operations", "count", len(ops), "failed", len(errs))
	}
	return errors.Join(errs...)
}

// OnRollback drops the queued operations without touching the backend.
func (b *Bridge) OnRollback(ec *ExecutionContext) {
	if ec == nil {
		return
	}
	if n := ec.discard(); n > 0 {
		queueDiscarded.Add(float64(n))
		b.logger.Debug("discarded cache operations", "count", n)
	}
}

func (b *Bridge) record(ec *ExecutionContext, rec Record, kind OpKind) error {
	if ec == nil {
		return ErrNoExecutionContext
	}
	cfg, err := b.registry.Lookup(rec)
	if err != nil {
		return err
	}

	related, err := b.related(cfg, rec)
	if err != nil {
		return err
	}

	if cfg.HasCachedFields() {
		ec.enqueue(kind, rec)
	}
	for _, r := range related {
		ec.enqueue(OpWrite, r)
	}
	return nil
}

// related resolves every invalidation field of rec. Nothing is enqueued when
// any target is invalid.
func (b *Bridge) related(cfg *TypeConfig, rec Record) ([]Record, error) {
	var out []Record
	for _, inv := range cfg.invalidations {
		for _, r := range inv.resolve(rec) {
			if isNil(r) {
				continue
			}
			if _, err := b.registry.Lookup(r); err != nil {
				return nil, fmt.Errorf("%w: %s.%s resolved to %T: %v", ErrInvalidInvalidation, cfg.name, inv.name, r, err)
			}
			out = append(out, r)
		}
	}
	return out, nil
}
