// Package recordcache keeps derived fields of persisted records in a
// hash-per-record side cache and keeps that cache consistent with the
// host's transactions.
//
// # Declaring types
//
// A host model embeds Attributes, reports its identity, and declares its
// cached and invalidation fields once at startup:
//
//	userType := recordcache.Define[*User]("User").
//		Cache("fullName", func(ctx context.Context, u *User) (any, error) {
//			return u.FirstName + " " + u.LastName, nil
//		}).
//		MustBuild()
//
//	groupType := recordcache.Define[*Group]("Group").
//		InvalidateOne("user", func(g *Group) recordcache.Record { return g.User }).
//		MustBuild()
//
//	registry := recordcache.NewRegistry()
//	registry.MustRegister(userType, groupType)
//
// Saving a Group then refreshes the cache entry of its User.
//
// # Reading
//
// Store.Get returns a cached field. The backend hash of a persisted record
// is fetched once per instance; missing fields are computed and remembered
// on the instance but never written back.
//
// # Transactions
//
// Lifecycle hooks only enqueue work on an ExecutionContext:
//
//	ec := recordcache.NewExecutionContext()
//	_ = bridge.OnSave(ec, user)
//	// commit the host transaction, then
//	err := bridge.OnCommit(ctx, ec)
//
// OnRollback drops the queue. Nothing reaches the backend until commit,
// and cache failures never fail the host transaction: they trip the
// breaker in cache.Gateway.
package recordcache
