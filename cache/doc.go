// Package cache provides the backend-facing building blocks of the record side-cache.
//
// # Overview
//
// This package exports the pieces that sit between computed record fields and
// a hash-per-key store:
//
//   - Backend: the DEL / HSET / HGETALL / HKEYS / HGET surface of the store
//   - Codec: converts native values to backend strings and back
//   - KeySpace: derives "<type-name>:<identity>" keys
//   - Gateway: wraps every backend call with a timeout and a circuit breaker
//   - Config: process-scope settings (Enabled, WriteOnly, Timeout, backend selection)
//
// The recordcache package builds the attribute store, update queue and
// transaction bridge on top of these.
//
// # Basic Usage
//
//	cfg := cache.DefaultConfig()
//	cfg.RedisURL = "redis://localhost:6379/0"
//
//	backend, err := cache.NewBackend(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	gateway := cache.NewGateway(backend, cfg)
//
//	key, _ := cache.NewDefaultKeySpace().KeyFor("User", "1") // "User:1"
//	gateway.HSet(ctx, key, map[string]string{"fullName": "John Smith"})
//
// # Value Encoding
//
// Integers are stored as decimal text and ordinary strings as themselves, so
// hashes stay readable from redis-cli. Every other value is stored as
// BlobPrefix followed by a msgpack payload. Strings that look like an integer
// or begin with BlobPrefix are stored as blobs too, which keeps them strings
// on the way back.
//
// Values written by other tools as bare digit strings are ambiguous: Decode
// returns them as int64. Callers that know the field type should use
// DecodeInto, which honours a string destination.
//
// # Circuit Breaker
//
// The Gateway never returns backend errors. The first failure, timeout or
// panic disables it for the rest of the process; after that every call
// returns the neutral result (nil map, nil slice, not found, false) without
// reaching the backend. Gateway.Enable is the only way back.
//
// A caller that cancels its own context does not trip the breaker.
//
// # Observability
//
// Gateway calls are counted in recordcache_backend_calls_total, timed in
// recordcache_backend_call_duration_seconds and traced with one span per call.
// recordcache_breaker_enabled reports the breaker state.
package cache
