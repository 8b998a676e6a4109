package cache

import (
	"reflect"
	"strings"
)

// KeySeparator joins the type name and the identity in a cache key.
const KeySeparator = ":"

// KeySpace derives backend keys for records.
type KeySpace interface {
	KeyFor(typeName, id string) (string, error)
}

type defaultKeySpace struct{}

// NewDefaultKeySpace returns the KeySpace producing "<type-name>:<identity>" keys.
func NewDefaultKeySpace() KeySpace {
	return defaultKeySpace{}
}

// KeyFor builds the key for the record of typeName identified by id.
func (defaultKeySpace) KeyFor(typeName, id string) (string, error) {
	if typeName == "" {
		return "", ErrEmptyTypeName
	}
	if id == "" {
		return "", ErrEmptyIdentity
	}
	return typeName + KeySeparator + id, nil
}

// TypeName returns a key-safe name for t: the bare type name without
// pointer markers, package path or generic instantiation suffix.
// "*models.User" and "models.Box[int]" become "User" and "Box".
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '_' || r == '-':
			return r
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return -1
		}
	}, name)
}
