package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/dbcache/database"
	"github.com/charlesng35/dbcache/store"
)

// TestDBOption customises the behaviour of MustOpenTestDB.
type TestDBOption func(*testDBConfig)

type testDBConfig struct {
	migrate bool
	table   string
}

// WithCacheTable migrates the cache table after opening the test database.
func WithCacheTable() TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
	}
}

// WithTableName overrides the table name used by WithCacheTable.
func WithTableName(name string) TestDBOption {
	return func(cfg *testDBConfig) {
		cfg.migrate = true
		cfg.table = name
	}
}

// MustOpenTestDB opens an in-memory SQLite database for tests, applying the
// cache table migration when requested. The returned connection is
// automatically closed via t.Cleanup.
func MustOpenTestDB(t *testing.T, opts ...TestDBOption) *gorm.DB {
	t.Helper()

	cfg := testDBConfig{table: store.DefaultTableName}
	for _, opt := range opts {
		opt(&cfg)
	}

	// A uniquely named shared-cache memory database keeps the pooled
	// connections on one store while isolating parallel tests.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := database.Open(database.Config{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)

	if cfg.migrate {
		recordStore, err := store.NewRecordStore(db, cfg.table)
		require.NoError(t, err)
		require.NoError(t, recordStore.Migrate())
	}

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection serialises concurrent writers; SQLite returns busy
	// errors otherwise.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
