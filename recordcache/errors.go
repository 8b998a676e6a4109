package recordcache

import (
	"errors"
	"fmt"
)

var (
	// ErrUnregisteredType is returned for records whose Go type has no registered TypeConfig.
	ErrUnregisteredType = errors.New("recordcache: record type not registered")

	// ErrDuplicateType is returned when a type or type name is registered twice.
	ErrDuplicateType = errors.New("recordcache: record type already registered")

	// ErrInvalidDefinition is returned by TypeBuilder.Build for malformed declarations.
	ErrInvalidDefinition = errors.New("recordcache: invalid type definition")

	// ErrInvalidInvalidation is returned when an invalidation field yields a record
	// the registry cannot cache.
	ErrInvalidInvalidation = errors.New("recordcache: invalid invalidation target")

	// ErrUnknownField is returned when a field is not declared as cached for the record type.
	ErrUnknownField = errors.New("recordcache: unknown cached field")

	// ErrFieldType is returned by Get when the resolved value does not have the requested type.
	ErrFieldType = errors.New("recordcache: cached field has unexpected type")

	// ErrNoIdentity is returned when a backend key is needed for a record without identity.
	ErrNoIdentity = errors.New("recordcache: record has no identity")

	// ErrNilRecord is returned when a nil record is passed in.
	ErrNilRecord = errors.New("recordcache: nil record")

	// ErrNoExecutionContext is returned when a lifecycle hook runs without an ExecutionContext.
	ErrNoExecutionContext = errors.New("recordcache: nil execution context")

	// ErrVerificationMismatch is matched by every *MismatchError.
	ErrVerificationMismatch = errors.New("recordcache: cached value does not match computed value")
)

// MismatchError reports a cached field whose stored value differs from a fresh computation.
type MismatchError struct {
	Key      string
	Field    string
	Expected any
	Actual   any
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("recordcache: cache mismatch for %s field %s: expected %#v, got %#v", e.Key, e.Field, e.Expected, e.Actual)
}

// Unwrap lets errors.Is match ErrVerificationMismatch.
func (e *MismatchError) Unwrap() error {
	return ErrVerificationMismatch
}
