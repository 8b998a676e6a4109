package cache

import "errors"

var (
	// ErrEmptyTypeName is returned when a cache key is requested without a type name.
	ErrEmptyTypeName = errors.New("recordcache: empty type name")

	// ErrEmptyIdentity is returned when a cache key is requested for a record without identity.
	ErrEmptyIdentity = errors.New("recordcache: empty record identity")

	// ErrDecodeTarget is returned by DecodeInto when the destination cannot hold the value.
	ErrDecodeTarget = errors.New("recordcache: invalid decode target")
)
