// Package dbtest opens throwaway stores for tests in other packages.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/shopfloor/backend/internal/db"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
)

// Epoch is where test clocks start. It is mid-morning so "today" windows
// have room on both sides.
var Epoch = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

// New opens a migrated and seeded store in a temp dir. The store clock is a
// StepClock starting at Epoch and advancing one second per reading.
func New(t testing.TB) (*db.DB, *db.StepClock) {
	t.Helper()
	clock := db.NewStepClock(Epoch, time.Second)
	store := Open(t, clock, true)
	return store, clock
}

// Open opens a migrated store, seeding it when seed is true.
func Open(t testing.TB, clock db.Clock, seed bool) *db.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "shopfloor.db")
	store, err := db.Open(path, db.WithClock(clock), db.WithLogger(logging.NewTest(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	if seed {
		require.NoError(t, store.Init(ctx))
	} else {
		require.NoError(t, store.Migrate(ctx))
	}
	return store
}
