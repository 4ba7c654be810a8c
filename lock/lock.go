// Package lock provides a named advisory mutual-exclusion primitive backed
// by the relational engine. Exclusion is scoped to a dedicated connection,
// so a crashed holder releases its locks when the session dies.
package lock

import (
	"context"
	"sync"
	"time"
)

// Handle represents a held lock. Release is best-effort and idempotent.
type Handle interface {
	Release()
}

// Locker acquires named exclusive locks with a bounded wait.
type Locker interface {
	// Acquire blocks until the named lock is granted or the timeout
	// elapses. A timeout surfaces as errors.ErrLockTimeout, never as a
	// silent success.
	Acquire(ctx context.Context, name string, timeout time.Duration) (Handle, error)
}

type handle struct {
	once    sync.Once
	release func()
}

func (h *handle) Release() {
	h.once.Do(func() {
		if h.release != nil {
			h.release()
		}
	})
}

func newHandle(release func()) Handle {
	return &handle{release: release}
}

// Noop returns a handle that holds nothing. Used by the degraded mode of
// lockers whose backing engine has no advisory primitive.
func Noop() Handle {
	return newHandle(nil)
}
