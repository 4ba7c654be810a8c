package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func TestNewSQLLockerRequiresDB(t *testing.T) {
	_, err := NewSQLLocker(nil)
	require.Error(t, err)
}

func TestSQLLockerDegradedMode(t *testing.T) {
	locker, err := NewSQLLocker(openSQLite(t))
	require.NoError(t, err)
	require.True(t, locker.Degraded())

	// Without an advisory primitive acquisition always succeeds.
	handle, err := locker.Acquire(context.Background(), "dbcache:key", time.Second)
	require.NoError(t, err)
	require.NotNil(t, handle)
	handle.Release()
	handle.Release() // release is idempotent
}

func TestHashNameIsDeterministic(t *testing.T) {
	require.Equal(t, hashName("dbcache:a"), hashName("dbcache:a"))
	require.NotEqual(t, hashName("dbcache:a"), hashName("dbcache:b"))
}

func TestNoopHandle(t *testing.T) {
	handle := Noop()
	handle.Release()
	handle.Release()
}
