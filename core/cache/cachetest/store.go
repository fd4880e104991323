// Package cachetest opens throwaway cache stores for tests.
package cachetest

import (
	"context"
	"testing"

	"timeline-cache/core/cache"
	"timeline-cache/core/database"
	"timeline-cache/core/notify"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// NewStore returns a migrated store on a private in-memory SQLite database.
func NewStore(t testing.TB, pub notify.Publisher) *cache.Store {
	t.Helper()

	db, err := database.Connect(database.Config{
		Driver: database.DriverSQLite,
		Path:   "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := cache.New(db, pub, zap.NewNop())
	require.NoError(t, store.Migrate(context.Background()))
	return store
}
