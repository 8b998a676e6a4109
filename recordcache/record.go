package recordcache

import (
	"reflect"
	"sync"
)

// Record is a persisted host model with cached fields.
//
// Host types satisfy it by embedding Attributes and implementing CacheIdentity:
//
//	type User struct {
//		recordcache.Attributes
//		ID        int64
//		FirstName string
//		LastName  string
//	}
//
//	func (u *User) CacheIdentity() (string, bool) {
//		return strconv.FormatInt(u.ID, 10), u.ID != 0
//	}
type Record interface {
	// CacheIdentity returns the record identity and whether the record has
	// been persisted. Unpersisted records are never read from the backend.
	CacheIdentity() (id string, persisted bool)

	cacheAttributes() *Attributes
}

// Attributes is the per-instance view of cached field values. The backend
// hash is fetched at most once per instance and every resolved field is
// remembered for the lifetime of the instance.
//
// The zero value is ready to use. Attributes must not be copied after first use.
type Attributes struct {
	mu      sync.Mutex
	fetched bool
	hash    map[string]string
	values  map[string]resolved
}

type resolved struct {
	value       any
	raw         string
	fromBackend bool
}

func (a *Attributes) cacheAttributes() *Attributes {
	return a
}

func (a *Attributes) memo(field string) (resolved, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.values[field]
	return r, ok
}

func (a *Attributes) remember(field string, r resolved) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.values == nil {
		a.values = make(map[string]resolved)
	}
	a.values[field] = r
}

// snapshot returns the backend hash, calling fetch on first use only. An
// empty or neutral result is remembered like any other.
func (a *Attributes) snapshot(fetch func() map[string]string) map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.fetched {
		a.hash = fetch()
		a.fetched = true
	}
	return a.hash
}

// isNil reports whether r is nil or a typed nil inside the interface.
func isNil(r Record) bool {
	if r == nil {
		return true
	}
	rv := reflect.ValueOf(r)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
