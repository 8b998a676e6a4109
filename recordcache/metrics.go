package recordcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var queueApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "recordcache_queue_applied_total",
	Help: "Number of pending cache operations processed on commit, by operation and result (ok, skipped, failed)",
}, []string{"op", "result"})

var queueDiscarded = promauto.NewCounter(prometheus.CounterOpts{
	Name: "recordcache_queue_discarded_total",
	Help: "Number of pending cache operations dropped on rollback",
})

var attributeReads = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "recordcache_attribute_reads_total",
	Help: "Number of cached field reads by source (memo, backend, computed)",
}, []string{"source"})
