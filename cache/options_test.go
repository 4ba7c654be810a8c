package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/dbcache/store"
)

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, Options{}.Validate())
	require.NoError(t, Options{CommandTimeout: time.Second}.Validate())
	require.Error(t, Options{CommandTimeout: -time.Second}.Validate())
	require.Error(t, Options{CleanupInterval: -time.Minute}.Validate())
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	require.Equal(t, store.DefaultTableName, opts.TableName)
	require.Equal(t, defaultCleanupInterval, opts.CleanupInterval)
	require.Equal(t, defaultLockTimeout, opts.LockTimeout)
}
