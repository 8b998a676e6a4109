package cache

import "context"

// Backend is the hash-per-key store the side-cache writes to. Each method
// maps onto one logical command: DEL, HSET (full overwrite), HGETALL, HKEYS, HGET.
// Implementations report failures as errors; the Gateway decides what to do with them.
type Backend interface {
	Del(ctx context.Context, key string) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HKeys(ctx context.Context, key string) ([]string, error)
	HGet(ctx context.Context, key, field string) (value string, found bool, err error)
}
