package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("recordcache")

var errGatewayTimeout = errors.New("recordcache: backend call timed out")

// Gateway guards every backend call with a timeout and a one-way circuit
// breaker. The first failed or timed out call disables the gateway for the
// rest of the process; from then on every call returns the neutral result
// without touching the backend. Failures are logged, never returned.
//
// A Gateway is safe for concurrent use.
type Gateway struct {
	backend Backend
	timeout time.Duration
	logger  *slog.Logger
	enabled atomic.Bool
	gauge   prometheus.Gauge

	calls    *xsync.Counter
	failures *xsync.Counter
	skipped  *xsync.Counter
}

// GatewayStats is a snapshot of the gateway counters.
type GatewayStats struct {
	Enabled  bool
	Calls    int64
	Failures int64
	Skipped  int64
}

// NewGateway wraps backend using cfg.Enabled as the initial breaker state
// and cfg.Timeout as the per-call bound.
func NewGateway(backend Backend, cfg Config) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	g := &Gateway{
		backend:  backend,
		timeout:  timeout,
		logger:   cfg.logger(),
		gauge:    breakerEnabled.WithLabelValues(cfg.name()),
		calls:    xsync.NewCounter(),
		failures: xsync.NewCounter(),
		skipped:  xsync.NewCounter(),
	}
	g.enabled.Store(cfg.Enabled && backend != nil)
	g.gauge.Set(boolGauge(g.enabled.Load()))
	return g
}

// Enabled reports whether calls currently reach the backend.
func (g *Gateway) Enabled() bool {
	return g.enabled.Load()
}

// Enable closes the breaker again. It is the administrative reset; the
// gateway never re-enables itself.
func (g *Gateway) Enable() {
	if g.backend == nil {
		return
	}
	if g.enabled.CompareAndSwap(false, true) {
		g.gauge.Set(1)
		g.logger.Warn("cache backend re-enabled")
	}
}

// Stats returns the process-local counters of this gateway.
func (g *Gateway) Stats() GatewayStats {
	return GatewayStats{
		Enabled:  g.enabled.Load(),
		Calls:    g.calls.Value(),
		Failures: g.failures.Value(),
		Skipped:  g.skipped.Value(),
	}
}

// Del deletes key. It reports whether the backend applied the call.
func (g *Gateway) Del(ctx context.Context, key string) bool {
	_, ok := call(ctx, g, "del", key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.backend.Del(ctx, key)
	})
	return ok
}

// HSet overwrites the hash at key with fields.
func (g *Gateway) HSet(ctx context.Context, key string, fields map[string]string) bool {
	_, ok := call(ctx, g, "hset", key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.backend.HSet(ctx, key, fields)
	})
	return ok
}

// HGetAll returns the hash at key; nil when the call did not go through.
func (g *Gateway) HGetAll(ctx context.Context, key string) map[string]string {
	hash, _ := call(ctx, g, "hgetall", key, func(ctx context.Context) (map[string]string, error) {
		return g.backend.HGetAll(ctx, key)
	})
	return hash
}

// HKeys returns the field names of the hash at key; nil when the call did not go through.
func (g *Gateway) HKeys(ctx context.Context, key string) []string {
	keys, _ := call(ctx, g, "hkeys", key, func(ctx context.Context) ([]string, error) {
		return g.backend.HKeys(ctx, key)
	})
	return keys
}

// HGet returns one field of the hash at key.
func (g *Gateway) HGet(ctx context.Context, key, field string) (string, bool) {
	type hit struct {
		value string
		found bool
	}
	res, ok := call(ctx, g, "hget", key, func(ctx context.Context) (hit, error) {
		value, found, err := g.backend.HGet(ctx, key, field)
		return hit{value: value, found: found}, err
	})
	if !ok {
		return "", false
	}
	return res.value, res.found
}

// call runs fn against the backend under the gateway timeout. The boolean is
// false whenever the neutral result is returned.
func call[T any](ctx context.Context, g *Gateway, op, key string, fn func(context.Context) (T, error)) (T, bool) {
	var zero T
	if !g.enabled.Load() {
		g.skipped.Inc()
		backendCalls.WithLabelValues(op, "skipped").Inc()
		return zero, false
	}
	// a caller that has already gone away is not a backend failure
	if ctx.Err() != nil {
		g.skipped.Inc()
		backendCalls.WithLabelValues(op, "skipped").Inc()
		return zero, false
	}

	g.calls.Inc()
	ctx, span := tracer.Start(ctx, "recordcache."+op, trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	callCtx, cancel := context.WithTimeoutCause(ctx, g.timeout, errGatewayTimeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("backend panic: %v", r)}
			}
		}()
		value, err := fn(callCtx)
		done <- result{value: value, err: err}
	}()

	var err error
	select {
	case res := <-done:
		if res.err == nil {
			backendCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
			backendCalls.WithLabelValues(op, "ok").Inc()
			return res.value, true
		}
		err = res.err
	case <-callCtx.Done():
		err = context.Cause(callCtx)
	}

	if ctx.Err() != nil && !errors.Is(err, errGatewayTimeout) {
		// the caller's own deadline or cancellation; leave the breaker alone
		g.skipped.Inc()
		backendCalls.WithLabelValues(op, "skipped").Inc()
		g.logger.Debug("cache call abandoned by caller", "op", op, "key", key, "err", ctx.Err())
		return zero, false
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	g.trip(op, key, err)
	return zero, false
}

func (g *Gateway) trip(op, key string, err error) {
	g.failures.Inc()
	backendCalls.WithLabelValues(op, "failed").Inc()
	if g.enabled.CompareAndSwap(true, false) {
		g.gauge.Set(0)
		g.logger.Error("cache backend failure, disabling cache", "op", op, "key", key, "err", err)
		return
	}
	g.logger.Warn("cache backend failure while disabled", "op", op, "key", key, "err", err)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
