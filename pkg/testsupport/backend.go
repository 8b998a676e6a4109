// Package testsupport provides test doubles shared by the package test suites.
package testsupport

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Backend operation names as recorded in Call.Op and accepted by FailOn and DelayOn.
const (
	OpDel     = "del"
	OpHSet    = "hset"
	OpHGetAll = "hgetall"
	OpHKeys   = "hkeys"
	OpHGet    = "hget"
)

// Call is one recorded backend invocation.
type Call struct {
	Op     string
	Key    string
	Field  string
	Fields map[string]string
}

// Backend is an in-memory hash-per-key store that records every call and can
// be told to fail or stall specific operations.
type Backend struct {
	mu       sync.Mutex
	data     map[string]map[string]string
	calls    []Call
	failures map[string]error
	delays   map[string]time.Duration
}

// NewBackend returns an empty recording backend.
func NewBackend() *Backend {
	return &Backend{
		data:     make(map[string]map[string]string),
		failures: make(map[string]error),
		delays:   make(map[string]time.Duration),
	}
}

// FailOn makes every call of op return err. An empty op matches all operations.
func (b *Backend) FailOn(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] = err
}

// DelayOn makes every call of op block for d or until its context is done.
func (b *Backend) DelayOn(op string, d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delays[op] = d
}

// Seed stores fields at key without recording a call.
func (b *Backend) Seed(key string, fields map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = copyHash(fields)
}

// Hash returns a copy of the hash stored at key without recording a call.
func (b *Backend) Hash(key string) (map[string]string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hash, ok := b.data[key]
	if !ok {
		return nil, false
	}
	return copyHash(hash), true
}

// Keys returns every stored key in sorted order.
func (b *Backend) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Calls returns the recorded calls in order.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Call(nil), b.calls...)
}

// CallCount returns how many calls of op were recorded.
func (b *Backend) CallCount(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Mutations returns the recorded del and hset calls.
func (b *Backend) Mutations() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, c := range b.calls {
		if c.Op == OpDel || c.Op == OpHSet {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets the recorded calls but keeps the data.
func (b *Backend) ResetCalls() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

func (b *Backend) Del(ctx context.Context, key string) error {
	if err := b.begin(ctx, Call{Op: OpDel, Key: key}); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func (b *Backend) HSet(ctx context.Context, key string, fields map[string]string) error {
	if err := b.begin(ctx, Call{Op: OpHSet, Key: key, Fields: copyHash(fields)}); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(fields) == 0 {
		delete(b.data, key)
		return nil
	}
	b.data[key] = copyHash(fields)
	return nil
}

func (b *Backend) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := b.begin(ctx, Call{Op: OpHGetAll, Key: key}); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyHash(b.data[key]), nil
}

func (b *Backend) HKeys(ctx context.Context, key string) ([]string, error) {
	if err := b.begin(ctx, Call{Op: OpHKeys, Key: key}); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.data[key]))
	for field := range b.data[key] {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *Backend) HGet(ctx context.Context, key, field string) (string, bool, error) {
	if err := b.begin(ctx, Call{Op: OpHGet, Key: key, Field: field}); err != nil {
		return "", false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	value, ok := b.data[key][field]
	return value, ok, nil
}

// begin records c, then applies any configured delay and failure.
func (b *Backend) begin(ctx context.Context, c Call) error {
	b.mu.Lock()
	b.calls = append(b.calls, c)
	delay := b.delays[c.Op]
	err, ok := b.failures[c.Op]
	if !ok {
		err = b.failures[""]
	}
	b.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func copyHash(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
