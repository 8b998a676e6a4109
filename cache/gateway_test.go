package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-record-cache/pkg/testsupport"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

type panickyBackend struct {
	*testsupport.Backend
}

func (panickyBackend) HGet(ctx context.Context, key, field string) (string, bool, error) {
	panic("connection pool corrupted")
}

func TestGateway_PassesThroughWhileEnabled(t *testing.T) {
	ctx := context.Background()
	backend := testsupport.NewBackend()
	g := NewGateway(backend, testConfig())

	require.True(t, g.Enabled())
	assert.True(t, g.HSet(ctx, "User:1", map[string]string{"fullName": "John Smith"}))
	assert.Equal(t, map[string]string{"fullName": "John Smith"}, g.HGetAll(ctx, "User:1"))
	assert.Equal(t, []string{"fullName"}, g.HKeys(ctx, "User:1"))

	value, found := g.HGet(ctx, "User:1", "fullName")
	assert.True(t, found)
	assert.Equal(t, "John Smith", value)

	assert.True(t, g.Del(ctx, "User:1"))
	_, found = g.HGet(ctx, "User:1", "fullName")
	assert.False(t, found)

	stats := g.Stats()
	assert.True(t, stats.Enabled)
	assert.Equal(t, int64(6), stats.Calls)
	assert.Zero(t, stats.Failures)
}

func TestGateway_FailureTripsBreakerForGood(t *testing.T) {
	ctx := context.Background()
	backend := testsupport.NewBackend()
	backend.FailOn(testsupport.OpHGetAll, errors.New("connection refused"))
	g := NewGateway(backend, testConfig())

	assert.Nil(t, g.HGetAll(ctx, "User:1"))
	assert.False(t, g.Enabled())

	backend.ResetCalls()
	assert.False(t, g.HSet(ctx, "User:1", map[string]string{"a": "b"}))
	assert.False(t, g.Del(ctx, "User:1"))
	assert.Nil(t, g.HKeys(ctx, "User:1"))
	value, found := g.HGet(ctx, "User:1", "a")
	assert.Empty(t, value)
	assert.False(t, found)

	assert.Empty(t, backend.Calls(), "disabled gateway must not touch the backend")

	stats := g.Stats()
	assert.Equal(t, int64(1), stats.Failures)
	assert.Equal(t, int64(4), stats.Skipped)
}

func TestGateway_TimeoutTripsBreaker(t *testing.T) {
	ctx := context.Background()
	backend := testsupport.NewBackend()
	backend.DelayOn(testsupport.OpHKeys, time.Hour)
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	g := NewGateway(backend, cfg)

	start := time.Now()
	keys := g.HKeys(ctx, "User:1")
	assert.Nil(t, keys)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, g.Enabled())
}

func TestGateway_PanicTripsBreaker(t *testing.T) {
	g := NewGateway(panickyBackend{testsupport.NewBackend()}, testConfig())

	value, found := g.HGet(context.Background(), "User:1", "fullName")
	assert.Empty(t, value)
	assert.False(t, found)
	assert.False(t, g.Enabled())
}

func TestGateway_DisabledByConfig(t *testing.T) {
	backend := testsupport.NewBackend()
	cfg := testConfig()
	cfg.Enabled = false
	g := NewGateway(backend, cfg)

	assert.False(t, g.Enabled())
	assert.False(t, g.HSet(context.Background(), "User:1", map[string]string{"a": "b"}))
	assert.Empty(t, backend.Calls())
}

func TestGateway_NilBackendNeverEnables(t *testing.T) {
	g := NewGateway(nil, testConfig())
	assert.False(t, g.Enabled())
	g.Enable()
	assert.False(t, g.Enabled())
	assert.Nil(t, g.HGetAll(context.Background(), "User:1"))
}

func TestGateway_EnableIsManualReset(t *testing.T) {
	ctx := context.Background()
	backend := testsupport.NewBackend()
	boom := errors.New("boom")
	backend.FailOn(testsupport.OpDel, boom)
	g := NewGateway(backend, testConfig())

	g.Del(ctx, "User:1")
	require.False(t, g.Enabled())

	backend.FailOn(testsupport.OpDel, nil)
	g.Enable()
	assert.True(t, g.Enabled())
	assert.True(t, g.Del(ctx, "User:1"))
}

func TestGateway_CallerCancellationDoesNotTrip(t *testing.T) {
	backend := testsupport.NewBackend()
	g := NewGateway(backend, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Nil(t, g.HGetAll(ctx, "User:1"))
	assert.True(t, g.Enabled())
	assert.Empty(t, backend.Calls())
}

func TestGateway_CallerDeadlineDoesNotTrip(t *testing.T) {
	backend := testsupport.NewBackend()
	backend.DelayOn(testsupport.OpHKeys, 200*time.Millisecond)
	cfg := testConfig()
	cfg.Timeout = 5 * time.Second
	g := NewGateway(backend, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Nil(t, g.HKeys(ctx, "User:1"))
	assert.True(t, g.Enabled(), "a caller deadline must not disable the cache")

	stats := g.Stats()
	assert.Equal(t, int64(0), stats.Failures)
	assert.Equal(t, int64(1), stats.Skipped)

	backend.DelayOn(testsupport.OpHKeys, 0)
	backend.Seed("User:1", map[string]string{"fullName": "John Smith"})
	assert.Equal(t, []string{"fullName"}, g.HKeys(context.Background(), "User:1"))
}

func TestGateway_BreakerGaugeIsPerGateway(t *testing.T) {
	gaugeValue := func(name string) float64 {
		m := &dto.Metric{}
		require.NoError(t, breakerEnabled.WithLabelValues(name).Write(m))
		return m.GetGauge().GetValue()
	}

	backend := testsupport.NewBackend()
	backend.FailOn(testsupport.OpDel, errors.New("boom"))

	primary := testConfig()
	primary.Name = "gauge-primary"
	g := NewGateway(backend, primary)
	require.Equal(t, float64(1), gaugeValue("gauge-primary"))

	secondary := testConfig()
	secondary.Name = "gauge-secondary"
	secondary.Enabled = false
	NewGateway(testsupport.NewBackend(), secondary)

	assert.Equal(t, float64(1), gaugeValue("gauge-primary"))
	assert.Equal(t, float64(0), gaugeValue("gauge-secondary"))

	g.Del(context.Background(), "User:1")
	assert.Equal(t, float64(0), gaugeValue("gauge-primary"))

	backend.FailOn(testsupport.OpDel, nil)
	g.Enable()
	assert.Equal(t, float64(1), gaugeValue("gauge-primary"))
}
