package recordcache

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/goliatone/go-record-cache/cache"
)

// RelationKind tells how an invalidation field resolves related records.
type RelationKind int

const (
	// RelationOne resolves to at most one related record.
	RelationOne RelationKind = iota + 1
	// RelationMany resolves to a collection of related records.
	RelationMany
)

func (k RelationKind) String() string {
	switch k {
	case RelationOne:
		return "one"
	case RelationMany:
		return "many"
	default:
		return fmt.Sprintf("RelationKind(%d)", int(k))
	}
}

type cachedField struct {
	name    string
	compute func(context.Context, Record) (any, error)
}

type invalidation struct {
	name    string
	kind    RelationKind
	resolve func(Record) []Record
}

// TypeConfig is the immutable cache declaration of one record type.
type TypeConfig struct {
	name          string
	goType        reflect.Type
	fields        []cachedField
	fieldIndex    map[string]int
	invalidations []invalidation
}

// Name returns the type name used in cache keys.
func (c *TypeConfig) Name() string {
	return c.name
}

// GoType returns the Go type the config was declared for.
func (c *TypeConfig) GoType() reflect.Type {
	return c.goType
}

// CachedFields returns the cached field names in declaration order,
// inherited fields first.
func (c *TypeConfig) CachedFields() []string {
	names := make([]string, len(c.fields))
	for i, f := range c.fields {
		names[i] = f.name
	}
	return names
}

// HasCachedFields reports whether records of this type own a cache entry.
func (c *TypeConfig) HasCachedFields() bool {
	return len(c.fields) > 0
}

// InvalidationFields returns the invalidation field names in declaration order.
func (c *TypeConfig) InvalidationFields() []string {
	names := make([]string, len(c.invalidations))
	for i, inv := range c.invalidations {
		names[i] = inv.name
	}
	return names
}

// Relation returns the relation kind of the named invalidation field.
func (c *TypeConfig) Relation(name string) (RelationKind, bool) {
	for _, inv := range c.invalidations {
		if inv.name == name {
			return inv.kind, true
		}
	}
	return 0, false
}

func (c *TypeConfig) field(name string) (cachedField, bool) {
	i, ok := c.fieldIndex[name]
	if !ok {
		return cachedField{}, false
	}
	return c.fields[i], true
}

func (c *TypeConfig) abstract() bool {
	return c.goType.Kind() == reflect.Interface
}

// TypeBuilder collects the cache declarations of record type T.
type TypeBuilder[T Record] struct {
	name          string
	goType        reflect.Type
	parent        *TypeConfig
	fields        []cachedField
	invalidations []invalidation
	errs          []error
}

// Define starts the declaration of record type T. An empty name defaults to
// the bare Go type name, so *models.User becomes "User".
//
// T may be an interface type; such configs cannot be registered and only
// serve as parents for Extends.
func Define[T Record](name string) *TypeBuilder[T] {
	goType := reflect.TypeOf((*T)(nil)).Elem()
	if name == "" {
		name = cache.TypeName(goType)
	}
	return &TypeBuilder[T]{name: name, goType: goType}
}

// Extends inherits the cached and invalidation fields of parent. Parent
// fields keep their position; redeclaring one replaces its computation.
func (b *TypeBuilder[T]) Extends(parent *TypeConfig) *TypeBuilder[T] {
	if parent == nil {
		b.errs = append(b.errs, fmt.Errorf("%w: %s extends nil config", ErrInvalidDefinition, b.name))
		return b
	}
	compatible := b.goType == parent.goType
	if parent.goType.Kind() == reflect.Interface {
		compatible = b.goType.Implements(parent.goType)
	}
	if !compatible {
		b.errs = append(b.errs, fmt.Errorf("%w: %s does not satisfy parent %s", ErrInvalidDefinition, b.goType, parent.goType))
		return b
	}
	b.parent = parent
	return b
}

// Cache declares a cached field computed by fn.
func (b *TypeBuilder[T]) Cache(name string, fn func(ctx context.Context, rec T) (any, error)) *TypeBuilder[T] {
	if !b.checkName(name, fn == nil) {
		return b
	}
	b.fields = append(b.fields, cachedField{
		name: name,
		compute: func(ctx context.Context, rec Record) (any, error) {
			typed, err := b.cast(rec)
			if err != nil {
				return nil, err
			}
			return fn(ctx, typed)
		},
	})
	return b
}

// InvalidateOne declares a relation whose record is refreshed whenever a
// record of type T is saved or destroyed. fn may return nil.
func (b *TypeBuilder[T]) InvalidateOne(name string, fn func(rec T) Record) *TypeBuilder[T] {
	if !b.checkName(name, fn == nil) {
		return b
	}
	b.invalidations = append(b.invalidations, invalidation{
		name: name,
		kind: RelationOne,
		resolve: func(rec Record) []Record {
			typed, err := b.cast(rec)
			if err != nil {
				return nil
			}
			related := fn(typed)
			if isNil(related) {
				return nil
			}
			return []Record{related}
		},
	})
	return b
}

// InvalidateMany declares a relation whose records are all refreshed
// whenever a record of type T is saved or destroyed.
func (b *TypeBuilder[T]) InvalidateMany(name string, fn func(rec T) []Record) *TypeBuilder[T] {
	if !b.checkName(name, fn == nil) {
		return b
	}
	b.invalidations = append(b.invalidations, invalidation{
		name: name,
		kind: RelationMany,
		resolve: func(rec Record) []Record {
			typed, err := b.cast(rec)
			if err != nil {
				return nil
			}
			return fn(typed)
		},
	})
	return b
}

// Build validates the declarations and returns the merged TypeConfig.
func (b *TypeBuilder[T]) Build() (*TypeConfig, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if b.name == "" {
		return nil, fmt.Errorf("%w: empty type name for %s", ErrInvalidDefinition, b.goType)
	}

	cfg := &TypeConfig{
		name:       b.name,
		goType:     b.goType,
		fieldIndex: make(map[string]int),
	}

	var parentFields []cachedField
	var parentInvalidations []invalidation
	if b.parent != nil {
		parentFields = b.parent.fields
		parentInvalidations = b.parent.invalidations
	}

	for _, f := range append(append([]cachedField{}, parentFields...), b.fields...) {
		if i, ok := cfg.fieldIndex[f.name]; ok {
			cfg.fields[i] = f
			continue
		}
		cfg.fieldIndex[f.name] = len(cfg.fields)
		cfg.fields = append(cfg.fields, f)
	}

	invIndex := make(map[string]int)
	for _, inv := range append(append([]invalidation{}, parentInvalidations...), b.invalidations...) {
		if i, ok := invIndex[inv.name]; ok {
			cfg.invalidations[i] = inv
			continue
		}
		invIndex[inv.name] = len(cfg.invalidations)
		cfg.invalidations = append(cfg.invalidations, inv)
	}

	return cfg, nil
}

// MustBuild is like Build but panics on error.
func (b *TypeBuilder[T]) MustBuild() *TypeConfig {
	cfg, err := b.Build()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (b *TypeBuilder[T]) checkName(name string, nilFn bool) bool {
	switch {
	case name == "":
		b.errs = append(b.errs, fmt.Errorf("%w: %s declares an empty field name", ErrInvalidDefinition, b.name))
		return false
	case nilFn:
		b.errs = append(b.errs, fmt.Errorf("%w: %s.%s has no function", ErrInvalidDefinition, b.name, name))
		return false
	}
	for _, f := range b.fields {
		if f.name == name {
			b.errs = append(b.errs, fmt.Errorf("%w: %s.%s declared twice", ErrInvalidDefinition, b.name, name))
			return false
		}
	}
	for _, inv := range b.invalidations {
		if inv.name == name {
			b.errs = append(b.errs, fmt.Errorf("%w: %s.%s declared twice", ErrInvalidDefinition, b.name, name))
			return false
		}
	}
	return true
}

func (b *TypeBuilder[T]) cast(rec Record) (T, error) {
	typed, ok := rec.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s expects %s, got %T", ErrUnregisteredType, b.name, b.goType, rec)
	}
	return typed, nil
}

// Records converts a typed slice for InvalidateMany.
func Records[S ~[]E, E Record](s S) []Record {
	out := make([]Record, 0, len(s))
	for _, r := range s {
		out = append(out, r)
	}
	return out
}

// Registry maps record types to their TypeConfig. It is safe for concurrent use.
type Registry struct {
	byType *xsync.MapOf[reflect.Type, *TypeConfig]
	byName *xsync.MapOf[string, *TypeConfig]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byType: xsync.NewMapOf[reflect.Type, *TypeConfig](),
		byName: xsync.NewMapOf[string, *TypeConfig](),
	}
}

// Register adds configs to the registry. Interface-typed configs are
// rejected. The batch is all or nothing: when any config fails, none of
// them stay registered.
func (r *Registry) Register(configs ...*TypeConfig) error {
	types := make(map[reflect.Type]bool, len(configs))
	names := make(map[string]bool, len(configs))
	for _, cfg := range configs {
		if cfg == nil {
			return fmt.Errorf("%w: nil config", ErrInvalidDefinition)
		}
		if cfg.abstract() {
			return fmt.Errorf("%w: %s is an interface type and can only be extended", ErrInvalidDefinition, cfg.goType)
		}
		if types[cfg.goType] {
			return fmt.Errorf("%w: %s", ErrDuplicateType, cfg.goType)
		}
		if names[cfg.name] {
			return fmt.Errorf("%w: name %q", ErrDuplicateType, cfg.name)
		}
		types[cfg.goType] = true
		names[cfg.name] = true
	}

	for i, cfg := range configs {
		if _, loaded := r.byType.LoadOrStore(cfg.goType, cfg); loaded {
			r.unregister(configs[:i])
			return fmt.Errorf("%w: %s", ErrDuplicateType, cfg.goType)
		}
		if _, loaded := r.byName.LoadOrStore(cfg.name, cfg); loaded {
			r.byType.Delete(cfg.goType)
			r.unregister(configs[:i])
			return fmt.Errorf("%w: name %q", ErrDuplicateType, cfg.name)
		}
	}
	return nil
}

func (r *Registry) unregister(configs []*TypeConfig) {
	for _, cfg := range configs {
		r.byType.Delete(cfg.goType)
		r.byName.Delete(cfg.name)
	}
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(configs ...*TypeConfig) {
	if err := r.Register(configs...); err != nil {
		panic(err)
	}
}

// Lookup returns the config registered for the dynamic type of rec.
func (r *Registry) Lookup(rec Record) (*TypeConfig, error) {
	if isNil(rec) {
		return nil, ErrNilRecord
	}
	cfg, ok := r.byType.Load(reflect.TypeOf(rec))
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnregisteredType, rec)
	}
	return cfg, nil
}

// ByName returns the config registered under name.
func (r *Registry) ByName(name string) (*TypeConfig, bool) {
	return r.byName.Load(name)
}

// Names returns the registered type names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.byName.Size())
	r.byName.Range(func(name string, _ *TypeConfig) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}
