package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts cache reads that returned a live value.
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dbcache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses counts cache reads that found no live value.
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dbcache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// Operations counts engine operations by name and outcome (ok|error).
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dbcache_operations_total",
			Help: "Total number of cache operations",
		},
		[]string{"operation", "result"},
	)

	// ReapedRecords counts rows removed by expired sweeps.
	ReapedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dbcache_reaped_records_total",
			Help: "Total number of expired records physically deleted",
		},
	)

	// LockTimeouts counts distributed lock acquisitions that timed out.
	LockTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dbcache_lock_timeouts_total",
			Help: "Total number of lock acquisition timeouts",
		},
	)
)
