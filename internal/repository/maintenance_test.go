package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

// TestMaintenance_List_derivesStatus verifies statuses follow the store clock.
func TestMaintenance_List_derivesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	items, err := f.repos.Maintenance.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 6)

	status := make(map[string]models.MaintenanceStatus)
	for _, it := range items {
		status[it.ID] = it.Status
	}
	assert.Equal(t, models.MaintenanceStatusDue, status["MT-001"])
	assert.Equal(t, models.MaintenanceStatusOverdue, status["MT-002"])
	assert.Equal(t, models.MaintenanceStatusOverdue, status["MT-004"])
	assert.Equal(t, models.MaintenanceStatusOverdue, status["MT-005"], "due at midnight today")
	assert.Equal(t, models.MaintenanceStatusDue, status["MT-006"])

	// Two days later MT-001 is overdue too, without any write.
	f.clock.Advance(48 * time.Hour)
	item, err := f.repos.Maintenance.Get(ctx, "MT-001")
	require.NoError(t, err)
	assert.Equal(t, models.MaintenanceStatusOverdue, item.Status)

	forMachine, err := f.repos.Maintenance.List(ctx, "M-102")
	require.NoError(t, err)
	require.Len(t, forMachine, 2)
	assert.Equal(t, "MT-004", forMachine[0].ID, "ordered by due date")
}

// TestMaintenance_MarkAsDone verifies completion stamps and one update record.
func TestMaintenance_MarkAsDone(t *testing.T) {
	f := newFixture(t)
	u := f.login(t)
	ctx := context.Background()

	item, err := f.repos.Maintenance.MarkAsDone(ctx, "MT-002", "oil topped up")
	require.NoError(t, err)
	assert.Equal(t, models.MaintenanceStatusDone, item.Status)
	require.NotNil(t, item.CompletedAt)
	assert.Equal(t, u.Email, item.CompletedBy)
	assert.Equal(t, "oil topped up", item.Notes)
	assert.False(t, item.Synced)

	records := f.records(t)
	require.Len(t, records, 1)
	assert.Equal(t, models.EntityMaintenance, records[0].EntityType)
	assert.Equal(t, models.ActionUpdate, records[0].Action)
	assert.Equal(t, "MT-002", records[0].EntityID)

	_, err = f.repos.Maintenance.MarkAsDone(ctx, "MT-002", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidTransition))
	assert.Len(t, f.records(t), 1)

	// Done stays done however far the clock moves.
	f.clock.Advance(30 * 24 * time.Hour)
	reloaded, err := f.repos.Maintenance.Get(ctx, "MT-002")
	require.NoError(t, err)
	assert.Equal(t, models.MaintenanceStatusDone, reloaded.Status)
}

// TestMaintenance_MarkAsDone_errors verifies session and lookup checks.
func TestMaintenance_MarkAsDone_errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repos.Maintenance.MarkAsDone(ctx, "MT-001", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthenticated))

	f.login(t)
	_, err = f.repos.Maintenance.MarkAsDone(ctx, "MT-999", "")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	assert.Empty(t, f.records(t))
}

// TestMaintenance_AddNote verifies notes are queued as an update.
func TestMaintenance_AddNote(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	ctx := context.Background()

	item, err := f.repos.Maintenance.AddNote(ctx, "MT-003", "belt replaced next week")
	require.NoError(t, err)
	assert.Equal(t, "belt replaced next week", item.Notes)
	assert.Equal(t, models.MaintenanceStatusDue, item.Status)

	_, err = f.repos.Maintenance.AddNote(ctx, "MT-003", "   ")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	records := f.records(t)
	require.Len(t, records, 1)
	assert.Equal(t, models.ActionUpdate, records[0].Action)
}
