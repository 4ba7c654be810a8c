package lock

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	apperrors "github.com/charlesng35/dbcache/pkg/errors"
	"github.com/charlesng35/dbcache/pkg/logger"
	"github.com/charlesng35/dbcache/pkg/metrics"
)

const acquireRetryInterval = 100 * time.Millisecond

// SQLLocker implements Locker on the advisory-lock primitives of the
// backing engine: pg_advisory_lock on PostgreSQL, GET_LOCK on MySQL. For
// engines without an advisory primitive (SQLite) it degrades to
// always-acquire, which disables the cross-process exclusion guarantee;
// the degraded mode is flagged once in the log.
type SQLLocker struct {
	db       *gorm.DB
	dialect  string
	log      *zap.Logger
	warnOnce sync.Once
}

// NewSQLLocker builds a locker for the supplied database handle.
func NewSQLLocker(db *gorm.DB) (*SQLLocker, error) {
	if db == nil {
		return nil, errors.New("lock: db is required")
	}
	return &SQLLocker{
		db:      db,
		dialect: db.Dialector.Name(),
		log:     logger.WithModule("lock"),
	}, nil
}

// Degraded reports whether the backing engine lacks an advisory primitive.
func (l *SQLLocker) Degraded() bool {
	return l.dialect != "postgres" && l.dialect != "mysql"
}

// Acquire implements Locker.
func (l *SQLLocker) Acquire(ctx context.Context, name string, timeout time.Duration) (Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	switch l.dialect {
	case "postgres":
		return l.acquirePostgres(ctx, name, timeout)
	case "mysql":
		return l.acquireMySQL(ctx, name, timeout)
	default:
		l.warnOnce.Do(func() {
			l.log.Warn("advisory locks unavailable, running unlocked",
				zap.String("dialect", l.dialect))
		})
		return Noop(), nil
	}
}

func (l *SQLLocker) conn(ctx context.Context) (*sql.Conn, error) {
	sqlDB, err := l.db.DB()
	if err != nil {
		return nil, err
	}
	return sqlDB.Conn(ctx)
}

// acquirePostgres polls pg_try_advisory_lock on a pinned connection until
// the deadline. The lock is session-scoped: closing the connection
// releases it even when the explicit unlock never runs.
func (l *SQLLocker) acquirePostgres(ctx context.Context, name string, timeout time.Duration) (Handle, error) {
	conn, err := l.conn(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "lock: acquire connection")
	}

	key := hashName(name)
	deadline := time.Now().Add(timeout)

	for {
		var granted bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&granted); err != nil {
			_ = conn.Close()
			return nil, apperrors.Wrap(err, "lock: pg_try_advisory_lock")
		}
		if granted {
			return newHandle(func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_, _ = conn.ExecContext(releaseCtx, "SELECT pg_advisory_unlock($1)", key)
				_ = conn.Close()
			}), nil
		}

		if time.Now().After(deadline) {
			_ = conn.Close()
			metrics.LockTimeouts.Inc()
			return nil, apperrors.ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			_ = conn.Close()
			return nil, apperrors.Wrap(ctx.Err(), "lock: acquire cancelled")
		case <-time.After(acquireRetryInterval):
		}
	}
}

// acquireMySQL uses GET_LOCK, which carries its own timeout. GET_LOCK
// returns 1 when granted, 0 on timeout and NULL on error.
func (l *SQLLocker) acquireMySQL(ctx context.Context, name string, timeout time.Duration) (Handle, error) {
	conn, err := l.conn(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "lock: acquire connection")
	}

	seconds := int(math.Ceil(timeout.Seconds()))
	var granted sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", name, seconds).Scan(&granted); err != nil {
		_ = conn.Close()
		return nil, apperrors.Wrap(err, "lock: GET_LOCK")
	}

	if !granted.Valid {
		_ = conn.Close()
		return nil, apperrors.Wrap(errors.New("GET_LOCK returned NULL"), "lock: GET_LOCK")
	}
	if granted.Int64 != 1 {
		_ = conn.Close()
		metrics.LockTimeouts.Inc()
		return nil, apperrors.ErrLockTimeout
	}

	return newHandle(func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = conn.ExecContext(releaseCtx, "SELECT RELEASE_LOCK(?)", name)
		_ = conn.Close()
	}), nil
}

// hashName folds a lock name into the int64 keyspace PostgreSQL advisory
// locks operate on.
func hashName(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}
