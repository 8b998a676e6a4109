package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var backendCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "recordcache_backend_calls_total",
	Help: "Number of cache backend calls by operation and result (ok, failed, skipped)",
}, []string{"op", "result"})

var backendCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "recordcache_backend_call_duration_seconds",
	Help:    "Duration of cache backend calls that reached the backend",
	Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
}, []string{"op"})

var breakerEnabled = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "recordcache_breaker_enabled",
	Help: "1 while the cache backend circuit breaker lets calls through, 0 once it has tripped",
}, []string{"gateway"})
