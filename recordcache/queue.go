package recordcache

import (
	"context"
	"fmt"
)

// OpKind is the kind of a pending cache operation.
type OpKind int

const (
	// OpWrite recomputes and overwrites the cache entry of a record.
	OpWrite OpKind = iota + 1
	// OpRemove deletes the cache entry of a record.
	OpRemove
)

func (k OpKind) String() string {
	switch k {
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// PendingOperation is a cache mutation deferred until the host transaction commits.
type PendingOperation struct {
	Kind   OpKind
	Record Record
}

// ExecutionContext carries the pending operations of one unit of work,
// typically one request or job. It is not safe for concurrent use; give each
// goroutine its own.
type ExecutionContext struct {
	ops []PendingOperation
}

// NewExecutionContext returns an ExecutionContext with an empty queue.
func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{}
}

// Len returns the number of pending operations.
func (ec *ExecutionContext) Len() int {
	return len(ec.ops)
}

// Pending returns a copy of the pending operations in enqueue order.
func (ec *ExecutionContext) Pending() []PendingOperation {
	out := make([]PendingOperation, len(ec.ops))
	copy(out, ec.ops)
	return out
}

func (ec *ExecutionContext) enqueue(kind OpKind, rec Record) {
	ec.ops = append(ec.ops, PendingOperation{Kind: kind, Record: rec})
}

// take empties the queue and returns what it held.
func (ec *ExecutionContext) take() []PendingOperation {
	ops := ec.ops
	ec.ops = nil
	return ops
}

func (ec *ExecutionContext) discard() int {
	n := len(ec.ops)
	ec.ops = nil
	return n
}

type executionContextKey struct{}

// WithExecutionContext returns a copy of ctx carrying ec.
func WithExecutionContext(ctx context.Context, ec *ExecutionContext) context.Context {
	return context.WithValue(ctx, executionContextKey{}, ec)
}

// ExecutionContextFrom returns the ExecutionContext carried by ctx, if any.
func ExecutionContextFrom(ctx context.Context) (*ExecutionContext, bool) {
	if ctx == nil {
		return nil, false
	}
	ec, ok := ctx.Value(executionContextKey{}).(*ExecutionContext)
	return ec, ok && ec != nil
}
