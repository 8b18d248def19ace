// Package queue provides unit tests for the persisted outbox.
package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/shopfloor/backend/internal/db"
	"github.com/kimhsiao/shopfloor/backend/internal/db/dbtest"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestOutbox(t *testing.T) (*Outbox, *db.DB) {
	t.Helper()
	store, _ := dbtest.New(t)
	return New(store, logging.NewTest(t)), store
}

func insertEvent(t *testing.T, store *db.DB, id string) models.DowntimeEvent {
	t.Helper()
	now := store.Now()
	e := models.DowntimeEvent{
		ID: id, UniqueID: "key-" + id, TenantID: "tenant_demo", MachineID: "M-101",
		StartTime: now, ReasonCode: models.PendingReasonCode, ReasonLabel: models.PendingReasonLabel,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, db.InsertDowntime(context.Background(), store, &e))
	return e
}

// attempt runs one failed attempt on the record.
func attempt(t *testing.T, o *Outbox, id string) {
	t.Helper()
	ok, err := o.MarkSyncing(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, o.Failed(context.Background(), id, "Sync failed"))
}

// =====================================================
// Enqueue Tests
// =====================================================

// TestOutbox_Enqueue verifies a new record is pending with zero retries.
func TestOutbox_Enqueue(t *testing.T) {
	o, store := newTestOutbox(t)
	ctx := context.Background()
	e := insertEvent(t, store, "D-1")

	item, err := o.Enqueue(ctx, store, DowntimeCreate{Event: e})
	require.NoError(t, err)

	got, err := o.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EntityDowntime, got.EntityType)
	assert.Equal(t, models.ActionCreate, got.Action)
	assert.Equal(t, "D-1", got.EntityID)
	assert.Equal(t, models.SyncStatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	assert.Nil(t, got.LastAttempt)
	assert.Empty(t, got.ErrorMessage)
	assert.True(t, item.CreatedAt.Equal(got.CreatedAt))
}

// TestOutbox_Enqueue_invalid verifies malformed payloads are rejected.
func TestOutbox_Enqueue_invalid(t *testing.T) {
	o, store := newTestOutbox(t)
	ctx := context.Background()

	_, err := o.Enqueue(ctx, store, DowntimeCreate{})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation), "missing entity id")

	_, err = o.Enqueue(ctx, store, EntityDelete{Entity: "machine", ID: "M-101"})
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation), "machines are not outbox entities")
}

// TestOutbox_Enqueue_inTx verifies a rolled back transaction drops the record.
func TestOutbox_Enqueue_inTx(t *testing.T) {
	o, store := newTestOutbox(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(q db.Querier) error {
		if _, err := o.Enqueue(ctx, q, EntityDelete{Entity: models.EntityAlert, ID: "A-1"}); err != nil {
			return err
		}
		return apperrors.New(apperrors.ErrInternal, "abort")
	})
	require.Error(t, err)

	n, err := o.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

// =====================================================
// Selection Tests
// =====================================================

// TestOutbox_Pending_fifo verifies creation order, with insertion order on ties.
func TestOutbox_Pending_fifo(t *testing.T) {
	store := dbtest.Open(t, fixedClock{dbtest.Epoch}, true)
	o := New(store, logging.NewTest(t))
	ctx := context.Background()
	e := insertEvent(t, store, "D-1")

	first, err := o.Enqueue(ctx, store, DowntimeCreate{Event: e})
	require.NoError(t, err)
	second, err := o.Enqueue(ctx, store, DowntimeUpdate{Event: e, Changed: []string{"end_time"}})
	require.NoError(t, err)
	require.True(t, first.CreatedAt.Equal(second.CreatedAt), "same timestamp exercises the tiebreak")

	items, err := o.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, first.ID, items[0].ID)
	assert.Equal(t, second.ID, items[1].ID)
}

// TestOutbox_Pending_order verifies older records come first regardless of id.
func TestOutbox_Pending_order(t *testing.T) {
	o, store := newTestOutbox(t)
	ctx := context.Background()

	var ids []string
	for _, id := range []string{"D-3", "D-1", "D-2"} {
		e := insertEvent(t, store, id)
		item, err := o.Enqueue(ctx, store, DowntimeCreate{Event: e})
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}

	items, err := o.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i := range ids {
		assert.Equal(t, ids[i], items[i].ID)
	}
}

// TestOutbox_retryLimit verifies a record is excluded after three failed attempts.
func TestOutbox_retryLimit(t *testing.T) {
	o, store := newTestOutbox(t)
	ctx := context.Background()
	e := insertEvent(t, store, "D-1")
	item, err := o.Enqueue(ctx, store, DowntimeCreate{Event: e})
	require.NoError(t, err)

	for i := 1; i <= RetryLimit; i++ {
		pending, err := o.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1, "attempt %d should still be selectable", i)

		attempt(t, o, item.ID)

		got, err := o.Get(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, i, got.RetryCount)
		assert.Equal(t, models.SyncStatusFailed, got.Status)
		assert.Equal(t, "Sync failed", got.ErrorMessage)
		require.NotNil(t, got.LastAttempt)
	}

	pending, err := o.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	ok, err := o.MarkSyncing(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, ok, "capped records cannot be taken")

	n, err := o.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	stats, err := o.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Exhausted)
}

// =====================================================
// Transition Tests
// =====================================================

// TestOutbox_MarkSyncing_guard verifies a record can be taken only once.
func TestOutbox_MarkSyncing_guard(t *testing.T) {
	o, store := newTestOutbox(t)
	ctx := context.Background()
	e := insertEvent(t, store, "D-1")
	item, err := o.Enqueue(ctx, store, DowntimeCreate{Event: e})
	require.NoError(t, err)

	ok, err := o.MarkSyncing(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = o.MarkSyncing(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	pending, err := o.Pending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending, "in-flight records are not selected")

	n, err := o.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "in-flight records still count as pending work")
}

// TestOutbox_Complete_marksEntity verifies the entity flag follows the last record.
func TestOutbox_Complete_marksEntity(t *testing.T) {
	o, store := newTestOutbox(t)
	ctx := context.Background()
	e := insertEvent(t, store, "D-1")

	create, err := o.Enqueue(ctx, store, DowntimeCreate{Event: e})
	require.NoError(t, err)
	update, err := o.Enqueue(ctx, store, DowntimeUpdate{Event: e, Changed: []string{"notes"}})
	require.NoError(t, err)

	ok, err := o.MarkSyncing(ctx, create.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, o.Complete(ctx, create))

	got, err := db.GetDowntime(ctx, store, "D-1")
	require.NoError(t, err)
	assert.False(t, got.Synced, "a pending update still needs the entity")

	ok, err = o.MarkSyncing(ctx, update.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, o.Complete(ctx, update))

	got, err = db.GetDowntime(ctx, store, "D-1")
	require.NoError(t, err)
	assert.True(t, got.Synced)

	rec, err := o.Get(ctx, update.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSynced, rec.Status)
	assert.NotNil(t, rec.LastAttempt)
}

// TestOutbox_notInFlight verifies outcomes require a prior MarkSyncing.
func TestOutbox_notInFlight(t *testing.T) {
	o, store := newTestOutbox(t)
	ctx := context.Background()
	e := insertEvent(t, store, "D-1")
	item, err := o.Enqueue(ctx, store, DowntimeCreate{Event: e})
	require.NoError(t, err)

	assert.True(t, apperrors.Is(o.Complete(ctx, item), apperrors.ErrNotFound))
	assert.True(t, apperrors.Is(o.Failed(ctx, item.ID, "x"), apperrors.ErrNotFound))

	got, err := o.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)
}

// TestOutbox_RecoverInFlight verifies interrupted records become pending again.
func TestOutbox_RecoverInFlight(t *testing.T) {
	o, store := newTestOutbox(t)
	ctx := context.Background()
	e := insertEvent(t, store, "D-1")
	item, err := o.Enqueue(ctx, store, DowntimeCreate{Event: e})
	require.NoError(t, err)
	attempt(t, o, item.ID)

	ok, err := o.MarkSyncing(ctx, item.ID)
	require.NoError(t, err)
	require.True(t, ok)

	n, err := o.RecoverInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := o.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount, "recovery does not reset retries")
}

// TestOutbox_Release verifies a released claim returns to its prior status
// without counting an attempt.
func TestOutbox_Release(t *testing.T) {
	o, store := newTestOutbox(t)
	ctx := context.Background()
	e := insertEvent(t, store, "D-1")
	fresh, err := o.Enqueue(ctx, store, DowntimeCreate{Event: e})
	require.NoError(t, err)
	retried, err := o.Enqueue(ctx, store, DowntimeUpdate{Event: e, Changed: []string{"notes"}})
	require.NoError(t, err)
	attempt(t, o, retried.ID)

	pending, err := o.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for i := range pending {
		ok, err := o.MarkSyncing(ctx, pending[i].ID)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, o.Release(ctx, &pending[i]))
	}

	got, err := o.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusPending, got.Status)
	assert.Equal(t, 0, got.RetryCount)

	got, err = o.Get(ctx, retried.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusFailed, got.Status)
	assert.Equal(t, 1, got.RetryCount)

	pending, err = o.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

// =====================================================
// Diagnostics Tests
// =====================================================

// TestOutbox_ListAndPurge verifies listing by status and purging synced records.
func TestOutbox_ListAndPurge(t *testing.T) {
	o, store := newTestOutbox(t)
	ctx := context.Background()
	e1 := insertEvent(t, store, "D-1")
	e2 := insertEvent(t, store, "D-2")

	done, err := o.Enqueue(ctx, store, DowntimeCreate{Event: e1})
	require.NoError(t, err)
	_, err = o.Enqueue(ctx, store, DowntimeCreate{Event: e2})
	require.NoError(t, err)

	ok, err := o.MarkSyncing(ctx, done.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, o.Complete(ctx, done))

	all, err := o.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	synced, err := o.List(ctx, ListFilter{Status: models.SyncStatusSynced})
	require.NoError(t, err)
	require.Len(t, synced, 1)
	assert.Equal(t, done.ID, synced[0].ID)

	limited, err := o.List(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := o.Purge(ctx, store.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := o.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 1, Pending: 1}, stats)
}
