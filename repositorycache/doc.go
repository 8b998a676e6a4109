// Package repositorycache connects go-repository-bun repositories to the
// record cache.
//
// # Overview
//
// CachedRepository wraps a base repository of recordcache.Record models.
// Successful writes report their records to a recordcache.Bridge so cached
// fields and invalidation relations stay in sync with the database. Reads are
// delegated unchanged; cached fields are read through recordcache.Store.
//
// # Basic Usage
//
//	cached := repositorycache.New(baseRepo, bridge, logger)
//
//	err := repositorycache.RunInTx(ctx, db, bridge, nil, func(ctx context.Context, tx bun.Tx) error {
//		if _, err := cached.CreateTx(ctx, tx, user); err != nil {
//			return err
//		}
//		_, err := cached.UpdateTx(ctx, tx, group)
//		return err
//	})
//
// Inside RunInTx every write is queued on the transaction's
// recordcache.ExecutionContext and the cache is updated after commit. A
// rollback leaves the cache untouched.
//
// # Writes Outside RunInTx
//
// A write whose context carries no ExecutionContext has already reached the
// database when it returns, so its cache operations are applied at once.
// This includes the *Tx methods when the caller manages the transaction
// itself; use RunInTx to defer them to commit.
//
// # Operation Mapping
//
//   - Create, GetOrCreate, Update, Upsert and their Many and Tx variants
//     save the returned records
//   - Delete and ForceDelete (and Tx variants) destroy the record
//   - DeleteMany and DeleteWhere cannot name their records and leave cache
//     entries in place
//
// # Error Handling
//
// Errors from the base repository are returned unchanged. Cache problems are
// logged and never fail the repository call.
//
// # Compatibility
//
// CachedRepository[T] implements repository.Repository[T] and can replace the
// base repository wherever it is used.
package repositorycache
