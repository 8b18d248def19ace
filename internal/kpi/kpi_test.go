package kpi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/shopfloor/backend/internal/db/dbtest"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/repository"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/queue"
)

// TestPercent verifies rounding and the empty case.
func TestPercent(t *testing.T) {
	tests := []struct {
		part, total int
		want        float64
	}{
		{0, 0, 0},
		{0, 6, 0},
		{1, 6, 17},
		{1, 3, 33},
		{2, 3, 67},
		{6, 6, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percent(tt.part, tt.total), "Percent(%d, %d)", tt.part, tt.total)
	}
}

// TestToday verifies the UTC day window.
func TestToday(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	start, end := Today(time.Date(2024, 5, 11, 3, 0, 0, 0, loc))

	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

// TestCompute_seeded verifies the figures of a fresh floor.
func TestCompute_seeded(t *testing.T) {
	store, _ := dbtest.New(t)
	k, err := New(store, logging.NewTest(t)).Compute(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.KPIData{
		MachinesRunning:  2,
		MachinesDown:     1,
		MaintenanceTotal: 6,
	}, *k)
}

// TestCompute verifies every figure after a shift of activity.
func TestCompute(t *testing.T) {
	ctx := context.Background()
	store, clock := dbtest.New(t)
	log := logging.NewTest(t)
	repos := repository.New(store, queue.New(store, log), "tenant_demo", log)
	_, err := repos.Users.Login(ctx, "sup@plant.example", models.RoleSupervisor, "tok")
	require.NoError(t, err)

	// Yesterday's event does not count.
	clock.Set(dbtest.Epoch.Add(-24 * time.Hour))
	old, err := repos.Downtime.Start(ctx, "M-103")
	require.NoError(t, err)
	_, err = repos.Downtime.End(ctx, old.ID, models.EndDowntimeInput{ReasonCode: "JAM", ParentReasonCode: "MATERIAL"})
	require.NoError(t, err)

	// A closed 30 minute event and one open for 10 minutes.
	clock.Set(dbtest.Epoch)
	closed, err := repos.Downtime.Start(ctx, "M-101")
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	_, err = repos.Downtime.End(ctx, closed.ID, models.EndDowntimeInput{ReasonCode: "BREAKDOWN", ParentReasonCode: "MECHANICAL"})
	require.NoError(t, err)
	_, err = repos.Downtime.Start(ctx, "M-102")
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)

	var ids []string
	for _, msg := range []string{"Oil pressure low", "Motor current high", "Coolant level low"} {
		a, err := repos.Alerts.Create(ctx, repository.NewAlert{MachineID: "M-101", Message: msg, Severity: models.SeverityHigh})
		require.NoError(t, err)
		ids = append(ids, a.ID)
	}
	_, err = repos.Alerts.Acknowledge(ctx, ids[0])
	require.NoError(t, err)
	_, err = repos.Alerts.Clear(ctx, ids[1])
	require.NoError(t, err)

	_, err = repos.Machines.UpdateStatus(ctx, "M-101", models.MachineStatusOff)
	require.NoError(t, err)
	_, err = repos.Maintenance.MarkAsDone(ctx, "MT-002", "")
	require.NoError(t, err)

	k, err := New(store, log).Compute(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, k.DowntimeEventsToday)
	assert.Equal(t, 40, k.DowntimeMinutesToday)
	assert.Equal(t, 3, k.AlertsTotal)
	assert.Equal(t, 2, k.AlertsOpen)
	assert.Equal(t, 1, k.AlertsCleared)
	assert.Equal(t, 1, k.MachinesRunning)
	assert.Equal(t, 2, k.MachinesDown)
	assert.Equal(t, 6, k.MaintenanceTotal)
	assert.Equal(t, 1, k.MaintenanceCompleted)
	assert.Equal(t, float64(17), k.MaintenancePercentage)
}
