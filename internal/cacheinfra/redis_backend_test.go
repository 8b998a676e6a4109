package cacheinfra

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live server only when RECORDCACHE_TEST_REDIS_URL is set.
func newTestRedisBackend(t *testing.T) *RedisBackend {
	t.Helper()
	url := os.Getenv("RECORDCACHE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("RECORDCACHE_TEST_REDIS_URL not set")
	}
	backend, err := NewRedisBackendFromURL(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestRedisBackend_HashLifecycle(t *testing.T) {
	ctx := context.Background()
	backend := newTestRedisBackend(t)
	key := "Test:" + uuid.NewString()
	t.Cleanup(func() { _ = backend.Del(ctx, key) })

	require.NoError(t, backend.HSet(ctx, key, map[string]string{"a": "1", "b": "two"}))

	hash, err := backend.HGetAll(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "two"}, hash)

	fields, err := backend.HKeys(ctx, key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, fields)

	value, found, err := backend.HGet(ctx, key, "b")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "two", value)

	_, found, err = backend.HGet(ctx, key, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	// HSet replaces the whole hash
	require.NoError(t, backend.HSet(ctx, key, map[string]string{"c": "3"}))
	hash, err = backend.HGetAll(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"c": "3"}, hash)

	require.NoError(t, backend.Del(ctx, key))
	hash, err = backend.HGetAll(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, hash)
}

func TestNewRedisBackendFromURL_InvalidURL(t *testing.T) {
	_, err := NewRedisBackendFromURL(context.Background(), "not a url")
	assert.Error(t, err)
}
