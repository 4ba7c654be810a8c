package cache

import (
	"time"

	"github.com/charlesng35/dbcache/store"
)

// DefaultSlidingInterval applies when a write supplies neither a sliding
// interval nor an absolute deadline.
const DefaultSlidingInterval = 30 * time.Minute

// Expiry is the computed expiration state for a record.
type Expiry struct {
	ExpiresAt time.Time
	Sliding   bool
}

// ComputeExpiry resolves the expiry for a write. A zero sliding interval
// and a nil deadline mean "unset". When the sliding candidate would pass
// the absolute deadline the record is pinned to the deadline and sliding
// is switched off: once the hard ceiling binds there is nothing left to
// refresh.
func ComputeExpiry(now time.Time, sliding time.Duration, deadline *time.Time) Expiry {
	switch {
	case sliding <= 0 && deadline == nil:
		return Expiry{ExpiresAt: now.Add(DefaultSlidingInterval), Sliding: true}
	case sliding <= 0:
		return Expiry{ExpiresAt: *deadline, Sliding: false}
	case deadline == nil:
		return Expiry{ExpiresAt: now.Add(sliding), Sliding: true}
	default:
		candidate := now.Add(sliding)
		if candidate.After(*deadline) {
			return Expiry{ExpiresAt: *deadline, Sliding: false}
		}
		return Expiry{ExpiresAt: candidate, Sliding: true}
	}
}

// NextOnRead recomputes the expiry for a sliding record that was just
// read, preserving the window the original write established and clamping
// to the absolute deadline when one is set. Callers must only invoke it
// for records with sliding enabled.
func NextOnRead(record *store.CacheRecord, now time.Time) Expiry {
	window := record.Window()
	if window <= 0 {
		window = DefaultSlidingInterval
	}
	return ComputeExpiry(now, window, record.AbsoluteDeadline)
}
