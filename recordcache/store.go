package recordcache

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/goliatone/go-record-cache/cache"
)

// Store resolves cached fields of records and writes their cache entries.
type Store struct {
	registry  *Registry
	gateway   *cache.Gateway
	keys      cache.KeySpace
	codec     cache.Codec
	writeOnly bool
	logger    *slog.Logger
}

// NewStore returns a Store over gateway. cfg supplies WriteOnly and Logger.
func NewStore(registry *Registry, gateway *cache.Gateway, cfg cache.Config) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("system", "recordcache")
	}
	return &Store{
		registry:  registry,
		gateway:   gateway,
		keys:      cache.NewDefaultKeySpace(),
		codec:     cache.Codec{},
		writeOnly: cfg.WriteOnly,
		logger:    logger.With("component", "store"),
	}
}

// Registry returns the registry the store resolves types with.
func (s *Store) Registry() *Registry {
	return s.registry
}

// KeyFor returns the backend key of rec.
func (s *Store) KeyFor(rec Record) (string, error) {
	cfg, err := s.registry.Lookup(rec)
	if err != nil {
		return "", err
	}
	return s.keyFor(cfg, rec)
}

// Get returns the value of a cached field of rec.
//
// A persisted record reads the backend hash once per instance and uses the
// stored value when present. Otherwise the field is computed. Either way the
// result is remembered on the instance. A computed value is not written back;
// only commits write cache entries.
//
// Values served from the backend are loosely typed (see cache.Codec.Decode);
// use the generic Get for a typed result.
func (s *Store) Get(ctx context.Context, rec Record, field string) (any, error) {
	r, err := s.lookup(ctx, rec, field)
	if err != nil {
		return nil, err
	}
	return r.value, nil
}

// Get returns the cached field of rec as a V. Backend values are decoded
// directly into V.
func Get[V any](ctx context.Context, s *Store, rec Record, field string) (V, error) {
	var zero V
	r, err := s.lookup(ctx, rec, field)
	if err != nil {
		return zero, err
	}
	if v, ok := r.value.(V); ok {
		return v, nil
	}
	if r.value == nil && !r.fromBackend {
		return zero, nil
	}
	if !r.fromBackend {
		return zero, fmt.Errorf("%w: %s holds %T", ErrFieldType, field, r.value)
	}

	var out V
	if err := s.codec.DecodeInto(r.raw, &out); err != nil {
		s.logger.Warn("cached value does not decode, recomputing", "field", field, "error", err)
		value, err := s.compute(ctx, rec, field)
		if err != nil {
			return zero, err
		}
		v, ok := value.(V)
		if !ok && value != nil {
			return zero, fmt.Errorf("%w: %s holds %T", ErrFieldType, field, value)
		}
		return v, nil
	}
	rec.cacheAttributes().remember(field, resolved{value: out, raw: r.raw, fromBackend: true})
	return out, nil
}

// CachedFields returns every cached field of rec by name.
func (s *Store) CachedFields(ctx context.Context, rec Record) (map[string]any, error) {
	cfg, err := s.registry.Lookup(rec)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(cfg.fields))
	for _, f := range cfg.fields {
		v, err := s.Get(ctx, rec, f.name)
		if err != nil {
			return nil, err
		}
		out[f.name] = v
	}
	return out, nil
}

// MergeCachedFields returns a copy of attrs with every cached field of rec
// added. Cached fields win over attrs entries of the same name.
func (s *Store) MergeCachedFields(ctx context.Context, rec Record, attrs map[string]any) (map[string]any, error) {
	cached, err := s.CachedFields(ctx, rec)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(attrs)+len(cached))
	for k, v := range attrs {
		out[k] = v
	}
	for k, v := range cached {
		out[k] = v
	}
	return out, nil
}

// WriteAll computes every cached field of rec and overwrites its cache entry.
// Types without cached fields are a no-op.
func (s *Store) WriteAll(ctx context.Context, rec Record) error {
	cfg, err := s.registry.Lookup(rec)
	if err != nil {
		return err
	}
	if !cfg.HasCachedFields() {
		return nil
	}
	key, err := s.keyFor(cfg, rec)
	if err != nil {
		return err
	}

	fields := make(map[string]string, len(cfg.fields))
	for _, f := range cfg.fields {
		value, err := f.compute(ctx, rec)
		if err != nil {
			return fmt.Errorf("compute %s.%s: %w", cfg.name, f.name, err)
		}
		encoded, err := s.codec.Encode(value)
		if err != nil {
			return fmt.Errorf("encode %s.%s: %w", cfg.name, f.name, err)
		}
		fields[f.name] = encoded
	}

	s.gateway.HSet(ctx, key, fields)
	return nil
}

// RemoveAll deletes the cache entry of rec.
func (s *Store) RemoveAll(ctx context.Context, rec Record) error {
	cfg, err := s.registry.Lookup(rec)
	if err != nil {
		return err
	}
	if !cfg.HasCachedFields() {
		return nil
	}
	key, err := s.keyFor(cfg, rec)
	if err != nil {
		return err
	}
	s.gateway.Del(ctx, key)
	return nil
}

// Verify compares every field stored for rec with a fresh computation and
// returns the names of the fields checked. The first difference is returned
// as a *MismatchError. Stored fields that are no longer declared are skipped.
func (s *Store) Verify(ctx context.Context, rec Record) ([]string, error) {
	cfg, err := s.registry.Lookup(rec)
	if err != nil {
		return nil, err
	}
	key, err := s.keyFor(cfg, rec)
	if err != nil {
		return nil, err
	}

	stored := s.gateway.HKeys(ctx, key)
	checked := make([]string, 0, len(stored))
	for _, name := range stored {
		decl, ok := cfg.field(name)
		if !ok {
			s.logger.Warn("stored field is not declared", "key", key, "field", name)
			continue
		}
		raw, found := s.gateway.HGet(ctx, key, name)
		if !found {
			continue
		}
		expected, err := decl.compute(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("compute %s.%s: %w", cfg.name, name, err)
		}
		normalized, err := s.normalize(expected)
		if err != nil {
			return nil, fmt.Errorf("encode %s.%s: %w", cfg.name, name, err)
		}
		actual := s.codec.Decode(raw)
		if !reflect.DeepEqual(normalized, actual) {
			return nil, &MismatchError{Key: key, Field: name, Expected: normalized, Actual: actual}
		}
		checked = append(checked, name)
	}
	return checked, nil
}

func (s *Store) lookup(ctx context.Context, rec Record, field string) (resolved, error) {
	if isNil(rec) {
		return resolved{}, ErrNilRecord
	}
	view := rec.cacheAttributes()
	if r, ok := view.memo(field); ok {
		attributeReads.WithLabelValues("memo").Inc()
		return r, nil
	}

	cfg, err := s.registry.Lookup(rec)
	if err != nil {
		return resolved{}, err
	}
	decl, ok := cfg.field(field)
	if !ok {
		return resolved{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, cfg.name, field)
	}

	if key, ok := s.readKey(cfg, rec); ok {
		hash := view.snapshot(func() map[string]string {
			return s.gateway.HGetAll(ctx, key)
		})
		if raw, ok := hash[field]; ok {
			r := resolved{value: s.codec.Decode(raw), raw: raw, fromBackend: true}
			view.remember(field, r)
			attributeReads.WithLabelValues("backend").Inc()
			return r, nil
		}
	}

	value, err := decl.compute(ctx, rec)
	if err != nil {
		return resolved{}, fmt.Errorf("compute %s.%s: %w", cfg.name, field, err)
	}
	r := resolved{value: value}
	view.remember(field, r)
	attributeReads.WithLabelValues("computed").Inc()
	return r, nil
}

func (s *Store) compute(ctx context.Context, rec Record, field string) (any, error) {
	cfg, err := s.registry.Lookup(rec)
	if err != nil {
		return nil, err
	}
	decl, ok := cfg.field(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, cfg.name, field)
	}
	value, err := decl.compute(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("compute %s.%s: %w", cfg.name, field, err)
	}
	rec.cacheAttributes().remember(field, resolved{value: value})
	return value, nil
}

// readKey returns the key to read rec from, or false when reads must compute.
func (s *Store) readKey(cfg *TypeConfig, rec Record) (string, bool) {
	if s.writeOnly {
		return "", false
	}
	id, persisted := rec.CacheIdentity()
	if !persisted || id == "" {
		return "", false
	}
	key, err := s.keys.KeyFor(cfg.name, id)
	if err != nil {
		return "", false
	}
	return key, true
}

func (s *Store) keyFor(cfg *TypeConfig, rec Record) (string, error) {
	id, _ := rec.CacheIdentity()
	if id == "" {
		return "", fmt.Errorf("%w: %s", ErrNoIdentity, cfg.name)
	}
	return s.keys.KeyFor(cfg.name, id)
}

// normalize passes v through the codec so it compares equal to a decoded backend value.
func (s *Store) normalize(v any) (any, error) {
	encoded, err := s.codec.Encode(v)
	if err != nil {
		return nil, err
	}
	return s.codec.Decode(encoded), nil
}
