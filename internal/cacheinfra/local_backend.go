package cacheinfra

import (
	"context"
	"sort"

	"github.com/viccon/sturdyc"
)

// LocalBackend is an in-process hash-per-key store built on a sturdyc client.
// Each key holds an immutable field map; writes replace the whole map so
// concurrent readers never observe a partially written hash.
type LocalBackend struct {
	client *sturdyc.Client[map[string]string]
}

// NewLocalBackend validates cfg and creates the sturdyc client behind the store.
func NewLocalBackend(cfg LocalConfig) (*LocalBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[map[string]string](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)

	return &LocalBackend{client: client}, nil
}

// Del removes the hash stored at key. Deleting a missing key is not an error.
func (b *LocalBackend) Del(ctx context.Context, key string) error {
	b.client.Delete(key)
	return nil
}

// HSet replaces the hash stored at key with fields.
func (b *LocalBackend) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		b.client.Delete(key)
		return nil
	}
	b.client.Set(key, copyHash(fields))
	return nil
}

// HGetAll returns a copy of the hash stored at key, or an empty map.
func (b *LocalBackend) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	hash, ok := b.client.Get(key)
	if !ok {
		return map[string]string{}, nil
	}
	return copyHash(hash), nil
}

// HKeys returns the field names of the hash stored at key in sorted order.
func (b *LocalBackend) HKeys(ctx context.Context, key string) ([]string, error) {
	hash, ok := b.client.Get(key)
	if !ok {
		return []string{}, nil
	}
	keys := make([]string, 0, len(hash))
	for field := range hash {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	return keys, nil
}

// HGet returns a single field of the hash stored at key.
func (b *LocalBackend) HGet(ctx context.Context, key, field string) (string, bool, error) {
	hash, ok := b.client.Get(key)
	if !ok {
		return "", false, nil
	}
	value, ok := hash[field]
	return value, ok, nil
}

// Size reports how many hashes the store currently holds.
func (b *LocalBackend) Size() int {
	return b.client.Size()
}

func copyHash(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
