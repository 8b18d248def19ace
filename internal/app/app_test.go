package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/shopfloor/backend/internal/config"
	"github.com/kimhsiao/shopfloor/backend/internal/connectivity"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/remote"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Sync.Interval = time.Hour
	cfg.Remote.Simulated = config.SimulatedRemoteConfig{}
	return cfg
}

// TestNew_wiresComponents verifies a fresh device is seeded and idle.
func TestNew_wiresComponents(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), Options{Log: logging.NewTest(t), Network: connectivity.NewManual(false)})
	require.NoError(t, err)
	defer a.Close()

	machines, err := a.Repos.Machines.List(ctx)
	require.NoError(t, err)
	assert.Len(t, machines, 3)
	assert.NotNil(t, a.Metrics)
	assert.IsType(t, &remote.Simulated{}, a.Remote)
	assert.Zero(t, a.Controller.Status().PendingCount)

	k, err := a.KPI.Compute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, k.MachinesRunning+k.MachinesDown)
}

// TestNew_rejectsUnknownRemote verifies transport selection errors stop startup.
func TestNew_rejectsUnknownRemote(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.Kind = "carrier-pigeon"

	_, err := New(context.Background(), cfg, Options{Log: logging.NewTest(t)})
	require.Error(t, err)
}

// TestApp_offlineFirst records downtime offline and verifies it syncs after
// the host reports connectivity.
func TestApp_offlineFirst(t *testing.T) {
	ctx := context.Background()
	net := connectivity.NewManual(false)
	sim := remote.NewSimulated(config.SimulatedRemoteConfig{}, nil)
	a, err := New(ctx, testConfig(t), Options{
		Log:     logging.NewTest(t),
		Remote:  sim,
		Network: net,
	})
	require.NoError(t, err)
	defer a.Close()
	a.Start(ctx)

	_, err = a.Repos.Users.Login(ctx, "op@plant.example", models.RoleOperator, "tok")
	require.NoError(t, err)
	e, err := a.Repos.Downtime.Start(ctx, "M-101")
	require.NoError(t, err)
	_, err = a.Repos.Downtime.End(ctx, e.ID, models.EndDowntimeInput{ReasonCode: "WEAR", ParentReasonCode: "MECHANICAL"})
	require.NoError(t, err)

	// The change subscription keeps the pending count current.
	assert.Equal(t, 2, a.Controller.Status().PendingCount)

	net.Set(true)
	require.Eventually(t, func() bool {
		s := a.Controller.Status()
		return !s.IsSyncing && s.PendingCount == 0 && s.LastSyncTime != nil
	}, 2*time.Second, 10*time.Millisecond)

	creates, updates := sim.Counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 1, updates)

	got, err := a.Repos.Downtime.Get(ctx, e.ID)
	require.NoError(t, err)
	assert.True(t, got.Synced)
}

// TestNew_recoversInFlight verifies a record stranded in syncing by a crash
// is selectable again after restart.
func TestNew_recoversInFlight(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	opts := Options{Log: logging.NewTest(t), Network: connectivity.NewManual(false)}

	a, err := New(ctx, cfg, opts)
	require.NoError(t, err)
	_, err = a.Repos.Users.Login(ctx, "op@plant.example", models.RoleOperator, "tok")
	require.NoError(t, err)
	_, err = a.Repos.Downtime.Start(ctx, "M-102")
	require.NoError(t, err)
	items, err := a.Outbox.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	claimed, err := a.Outbox.MarkSyncing(ctx, items[0].ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, a.Close())

	b, err := New(ctx, cfg, opts)
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Outbox.Get(ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusPending, got.Status)
	assert.Zero(t, got.RetryCount)
}
