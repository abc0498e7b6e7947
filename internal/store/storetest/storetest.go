// Package storetest opens throwaway in-memory stores for tests.
package storetest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/terratrac/eudr-backend/internal/config"
	"github.com/terratrac/eudr-backend/internal/db"
	"github.com/terratrac/eudr-backend/internal/store"
	"gorm.io/gorm"
)

// Open returns a migrated sqlite database that lives for the test.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := db.Open(config.Database{Driver: "sqlite", URL: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(d))
	t.Cleanup(func() {
		if sqlDB, err := d.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return d
}

// New returns a Store over Open(t).
func New(t *testing.T) *store.Store {
	t.Helper()
	return store.New(Open(t))
}
