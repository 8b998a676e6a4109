package repositorycache

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-record-cache/recordcache"
)

// TxRunner runs fn inside a database transaction. *bun.DB satisfies it.
type TxRunner interface {
	RunInTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error
}

// RunInTx runs fn in a transaction on db with an ExecutionContext attached to
// the context fn receives. CachedRepository writes made with that context are
// queued and applied once the transaction commits, or dropped when it rolls
// back.
//
// A context that already carries an ExecutionContext joins it: the queue is
// left for the outermost RunInTx to apply.
//
// The returned error is the transaction's; cache failures after commit are
// only logged.
func RunInTx(ctx context.Context, db TxRunner, bridge *recordcache.Bridge, opts *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	if _, ok := recordcache.ExecutionContextFrom(ctx); ok {
		return db.RunInTx(ctx, opts, fn)
	}

	ec := recordcache.NewExecutionContext()
	if err := db.RunInTx(recordcache.WithExecutionContext(ctx, ec), opts, fn); err != nil {
		bridge.OnRollback(ec)
		return err
	}

	// the bridge logs failed operations; the transaction itself succeeded
	_ = bridge.OnCommit(ctx, ec)
	return nil
}
