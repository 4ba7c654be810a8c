package cache

import (
	"sync/atomic"

	"github.com/charlesng35/dbcache/pkg/metrics"
)

// Statistics is a point-in-time snapshot of cache state. The store-derived
// fields come from one aggregate query; the hit ratio comes from the
// process-local counters and is approximate under concurrency.
type Statistics struct {
	ItemCount           int64   `json:"item_count"`
	TotalSizeBytes      int64   `json:"total_size_bytes"`
	ExpiringWithin10Min int64   `json:"expiring_within_10_min"`
	HitRatio            float64 `json:"hit_ratio"`
}

// StatisticsTracker counts hits and misses with atomic increments. The
// counters are owned by one engine instance, reset with the process and
// never persisted.
type StatisticsTracker struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// Hit records a successful read.
func (t *StatisticsTracker) Hit() {
	t.hits.Add(1)
	metrics.CacheHits.Inc()
}

// Miss records a read that found no live value.
func (t *StatisticsTracker) Miss() {
	t.misses.Add(1)
	metrics.CacheMisses.Inc()
}

// Counts returns the raw counter values.
func (t *StatisticsTracker) Counts() (hits, misses int64) {
	return t.hits.Load(), t.misses.Load()
}

// Ratio returns hits/(hits+misses), and 0 when nothing has been counted.
// The two loads are not linearizable with concurrent increments; the
// ratio is an observability aid, not a correctness mechanism.
func (t *StatisticsTracker) Ratio() float64 {
	hits := t.hits.Load()
	misses := t.misses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
