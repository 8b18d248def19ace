// Package scheduler tests for the sync controller.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/shopfloor/backend/internal/connectivity"
	"github.com/kimhsiao/shopfloor/backend/internal/db/dbtest"
	"github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/repository"
	syncpkg "github.com/kimhsiao/shopfloor/backend/internal/sync"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/queue"
)

// =====================================================
// Test Helpers
// =====================================================

// fakeEngine counts passes and reports a settable pending count.
type fakeEngine struct {
	calls   atomic.Int32
	pending atomic.Int32
	err     error
}

func (f *fakeEngine) Sync(context.Context) (*syncpkg.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return &syncpkg.Result{Error: f.err.Error()}, f.err
	}
	return &syncpkg.Result{Synced: int(f.pending.Swap(0))}, nil
}

func (f *fakeEngine) Status() syncpkg.Status {
	return syncpkg.Status{PendingCount: int(f.pending.Load())}
}

func (f *fakeEngine) RefreshPending(context.Context) (int, error) {
	return int(f.pending.Load()), nil
}

func (f *fakeEngine) AddEventHandler(syncpkg.EventHandler) {}

// acceptAll is a transport that accepts every record.
type acceptAll struct{ calls atomic.Int32 }

func (a *acceptAll) SyncCreate(context.Context, syncpkg.Request) (bool, error) {
	a.calls.Add(1)
	return true, nil
}

func (a *acceptAll) SyncUpdate(context.Context, syncpkg.Request) (bool, error) {
	a.calls.Add(1)
	return true, nil
}

// newController builds a started controller that is stopped when the test ends.
func newController(t *testing.T, engine syncpkg.Syncer, net *connectivity.Manual, cfg Config) *Controller {
	t.Helper()
	c := NewController(engine, net, net, cfg, logging.NewTest(t))
	c.Start(context.Background())
	t.Cleanup(c.Stop)
	return c
}

// =====================================================
// Configuration Tests
// =====================================================

// TestDefaultConfig verifies default timing.
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 60*time.Second, cfg.Interval)
	assert.Equal(t, 2*time.Minute, cfg.PassTimeout)
}

// TestNewController_fillsDefaults verifies zero values fall back to defaults.
func TestNewController_fillsDefaults(t *testing.T) {
	c := NewController(&fakeEngine{}, connectivity.NewManual(false), nil, Config{}, nil)
	assert.Equal(t, DefaultConfig(), c.cfg)
	assert.False(t, c.IsRunning())
	assert.False(t, c.IsOnline())
}

// =====================================================
// Lifecycle Tests
// =====================================================

// TestController_StartStop verifies lifecycle calls are idempotent and the
// connectivity subscription is dropped on stop.
func TestController_StartStop(t *testing.T) {
	net := connectivity.NewManual(false)
	c := NewController(&fakeEngine{}, net, net, Config{Interval: time.Hour}, logging.NewTest(t))

	c.Start(context.Background())
	c.Start(context.Background())
	assert.True(t, c.IsRunning())
	assert.Equal(t, 1, net.Subscribers())

	c.Stop()
	c.Stop()
	assert.False(t, c.IsRunning())
	assert.Zero(t, net.Subscribers())

	// Restart works after a stop.
	c.Start(context.Background())
	assert.True(t, c.IsRunning())
	c.Stop()
}

// TestController_startupCheckWhenOnline verifies a controller started while
// online runs one pass from the initial check.
func TestController_startupCheckWhenOnline(t *testing.T) {
	engine := &fakeEngine{}
	c := newController(t, engine, connectivity.NewManual(true), Config{Interval: time.Hour})

	assert.True(t, c.IsOnline())
	require.Eventually(t, func() bool { return engine.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

// TestController_stoppedIgnoresNotifications verifies no pass starts after stop.
func TestController_stoppedIgnoresNotifications(t *testing.T) {
	engine := &fakeEngine{}
	net := connectivity.NewManual(false)
	c := NewController(engine, net, net, Config{Interval: time.Hour}, logging.NewTest(t))
	c.Start(context.Background())
	c.Stop()

	net.Set(true)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, engine.calls.Load())
}

// =====================================================
// Trigger Tests
// =====================================================

// TestController_reconnectTriggers verifies one pass per offline to online
// transition and none for repeated or offline notifications.
func TestController_reconnectTriggers(t *testing.T) {
	engine := &fakeEngine{}
	net := connectivity.NewManual(false)
	c := newController(t, engine, net, Config{Interval: time.Hour})
	assert.False(t, c.IsOnline())

	net.Set(true)
	require.Eventually(t, func() bool { return engine.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, c.IsOnline())

	net.Set(true)
	net.Set(false)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), engine.calls.Load())
	assert.False(t, c.IsOnline())

	net.Set(true)
	require.Eventually(t, func() bool { return engine.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

// TestController_intervalTriggersWithPending verifies ticks only start passes
// while online with outstanding records.
func TestController_intervalTriggersWithPending(t *testing.T) {
	engine := &fakeEngine{}
	net := connectivity.NewManual(true)
	newController(t, engine, net, Config{Interval: 10 * time.Millisecond})

	// The startup check finds the device online and runs one pass.
	require.Eventually(t, func() bool { return engine.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Online with nothing pending: ticks stay quiet.
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), engine.calls.Load())

	// New local writes are picked up by a later tick.
	engine.pending.Store(1)
	require.Eventually(t, func() bool { return engine.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	// Offline with pending records: nothing happens.
	net.Set(false)
	engine.pending.Store(2)
	before := engine.calls.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, before, engine.calls.Load())
}

// TestController_offlinePassIsQuiet verifies an offline rejection from the
// engine does not stop the controller.
func TestController_offlinePassIsQuiet(t *testing.T) {
	engine := &fakeEngine{err: errors.New(errors.ErrSyncOffline, syncpkg.OfflineMessage)}
	c := newController(t, engine, connectivity.NewManual(true), Config{Interval: time.Hour})

	require.Eventually(t, func() bool { return engine.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, c.IsRunning())
}

// =====================================================
// Manual Operation Tests
// =====================================================

// TestController_ForceSync verifies a forced pass runs synchronously and
// reports the engine result.
func TestController_ForceSync(t *testing.T) {
	engine := &fakeEngine{}
	engine.pending.Store(3)
	c := NewController(engine, connectivity.NewManual(false), nil, Config{}, logging.NewTest(t))

	result, err := c.ForceSync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Synced)
	assert.Equal(t, int32(1), engine.calls.Load())
}

// TestController_ForceSyncError verifies engine errors are returned as is.
func TestController_ForceSyncError(t *testing.T) {
	engine := &fakeEngine{err: errors.New(errors.ErrSyncOffline, syncpkg.OfflineMessage)}
	c := NewController(engine, connectivity.NewManual(false), nil, Config{}, logging.NewTest(t))

	_, err := c.ForceSync(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSyncOffline))
}

// TestController_StatusAndSubscribe verifies subscribers see connectivity
// changes and refreshes, and stop seeing them after unsubscribing.
func TestController_StatusAndSubscribe(t *testing.T) {
	engine := &fakeEngine{}
	net := connectivity.NewManual(false)
	c := newController(t, engine, net, Config{Interval: time.Hour})

	var mu sync.Mutex
	var seen []Status
	unsubscribe := c.Subscribe(func(s Status) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	engine.pending.Store(4)
	c.Refresh(context.Background())

	mu.Lock()
	require.Len(t, seen, 1)
	assert.Equal(t, 4, seen[0].PendingCount)
	assert.False(t, seen[0].IsOnline)
	assert.True(t, seen[0].IsRunning)
	mu.Unlock()

	unsubscribe()
	unsubscribe()
	c.Refresh(context.Background())

	mu.Lock()
	assert.Len(t, seen, 1)
	mu.Unlock()

	s := c.Status()
	assert.True(t, s.IsRunning)
	assert.Equal(t, 4, s.PendingCount)
}

// =====================================================
// End-to-End Tests
// =====================================================

// TestController_offlineWritesSyncOnReconnect records downtime while offline
// and verifies everything lands once the device comes back online.
func TestController_offlineWritesSyncOnReconnect(t *testing.T) {
	ctx := context.Background()
	store, _ := dbtest.New(t)
	log := logging.NewTest(t)
	outbox := queue.New(store, log)
	repos := repository.New(store, outbox, "tenant_demo", log)
	_, err := repos.Users.Login(ctx, "op@plant.example", models.RoleOperator, "tok")
	require.NoError(t, err)

	net := connectivity.NewManual(false)
	transport := &acceptAll{}
	engine := syncpkg.NewEngine(outbox, transport, net, log)
	c := newController(t, engine, net, Config{Interval: time.Hour})

	var ids []string
	for _, machineID := range []string{"M-101", "M-102", "M-103"} {
		e, err := repos.Downtime.Start(ctx, machineID)
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	c.Refresh(ctx)
	assert.Equal(t, 3, c.Status().PendingCount)
	assert.Zero(t, transport.calls.Load())

	net.Set(true)
	require.Eventually(t, func() bool {
		n, err := outbox.PendingCount(ctx)
		return err == nil && n == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int32(3), transport.calls.Load())
	for _, id := range ids {
		e, err := repos.Downtime.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, e.Synced, "downtime %s should be synced", id)
	}
	require.Eventually(t, func() bool {
		s := c.Status()
		return !s.IsSyncing && s.LastSyncTime != nil && s.PendingCount == 0
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, c.Status().LastError)
}
