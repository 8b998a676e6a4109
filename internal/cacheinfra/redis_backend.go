package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisBackend maps the hash operations onto a go-redis client.
type RedisBackend struct {
	client redis.UniversalClient
}

// NewRedisBackend wraps an existing client. The caller owns its lifecycle.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

// NewRedisBackendFromURL parses redisURL, connects and checks the connection.
func NewRedisBackendFromURL(ctx context.Context, redisURL string) (*RedisBackend, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisBackend{client: rdb}, nil
}

// Del issues DEL key.
func (b *RedisBackend) Del(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

// HSet replaces the hash at key: DEL and HSET run in one MULTI block so
// fields dropped from a type's declaration do not linger.
func (b *RedisBackend) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return b.Del(ctx, key)
	}
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, hashArgs(fields)...)
		return nil
	})
	return err
}

// HGetAll issues HGETALL key. A missing key yields an empty map.
func (b *RedisBackend) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return b.client.HGetAll(ctx, key).Result()
}

// HKeys issues HKEYS key.
func (b *RedisBackend) HKeys(ctx context.Context, key string) ([]string, error) {
	return b.client.HKeys(ctx, key).Result()
}

// HGet issues HGET key field; redis.Nil is reported as a missing field.
func (b *RedisBackend) HGet(ctx context.Context, key, field string) (string, bool, error) {
	value, err := b.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Close releases the underlying client.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// hashArgs flattens fields into HSET arguments with fields in sorted order.
func hashArgs(fields map[string]string) []any {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	args := make([]any, 0, len(fields)*2)
	for _, name := range names {
		args = append(args, name, fields[name])
	}
	return args
}
