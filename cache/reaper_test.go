package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/dbcache/database/testutil"
	"github.com/charlesng35/dbcache/store"
)

func TestReaperSweepsExpiredRecords(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	clock := newFakeClock()

	engine, err := New(db, Options{
		AutoCleanup:     true,
		CleanupInterval: 150 * time.Millisecond,
	}, WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	ctx := context.Background()
	require.NoError(t, engine.Set(ctx, "doomed", "value", WithSlidingExpiration(time.Second)))
	require.NoError(t, engine.Set(ctx, "survivor", "value", WithSlidingExpiration(time.Hour)))

	clock.Advance(2 * time.Second)

	recordStore, err := store.NewRecordStore(db, store.DefaultTableName)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok, err := recordStore.GetByKey(ctx, "doomed")
		return err == nil && !ok
	}, 2*time.Second, 50*time.Millisecond)

	_, ok, err := recordStore.GetByKey(ctx, "survivor")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestReaperStopIsImmediate(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	engine, err := New(db, Options{
		AutoCleanup:     true,
		CleanupInterval: time.Hour,
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		_ = engine.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("engine close blocked on reaper shutdown")
	}
}

func TestReaperSurvivesFailedSweep(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	engine, err := New(db, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	// Dropping the table makes every sweep fail; the reaper must log and
	// carry on rather than panic.
	require.NoError(t, db.Migrator().DropTable(store.DefaultTableName))

	reaper := NewReaper(engine, 50*time.Millisecond)
	require.NoError(t, reaper.Start())
	time.Sleep(200 * time.Millisecond)
	reaper.Stop()
}
