// Package scheduler owns the device's online belief and decides when sync
// passes run: once on every offline to online transition, and on a fixed
// interval while online with outstanding records.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kimhsiao/shopfloor/backend/internal/connectivity"
	"github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	syncpkg "github.com/kimhsiao/shopfloor/backend/internal/sync"
)

// Config holds controller timing.
type Config struct {
	Interval    time.Duration // safety-net sync interval while online (default: 60 seconds)
	PassTimeout time.Duration // upper bound for one triggered pass (default: 2 minutes)
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{
		Interval:    60 * time.Second,
		PassTimeout: 2 * time.Minute,
	}
}

// Status is what the UI shows about sync. Queue records themselves are
// never exposed.
type Status struct {
	IsRunning    bool       `json:"is_running"`
	IsOnline     bool       `json:"is_online"`
	IsSyncing    bool       `json:"is_syncing"`
	PendingCount int        `json:"pending_count"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// Controller drives sync passes from connectivity changes and a ticker.
type Controller struct {
	engine syncpkg.Syncer
	probe  connectivity.Probe
	source connectivity.Source
	cfg    Config
	log    *logging.Logger

	mu          sync.RWMutex
	isRunning   bool
	isOnline    bool
	baseCtx     context.Context
	stopCh      chan struct{}
	unsubscribe func()
	wg          sync.WaitGroup

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Status)
}

// NewController creates a Controller. source may be nil when the host has
// no change notifications; the probe is then only consulted on demand.
func NewController(engine syncpkg.Syncer, probe connectivity.Probe, source connectivity.Source, cfg Config, log *logging.Logger) *Controller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.PassTimeout <= 0 {
		cfg.PassTimeout = def.PassTimeout
	}
	return &Controller{
		engine: engine,
		probe:  probe,
		source: source,
		cfg:    cfg,
		log:    logging.OrNop(log).Named("scheduler"),
		subs:   make(map[int]func(Status)),
	}
}

// Start subscribes to connectivity changes, checks connectivity once and
// starts the interval loop. Calling Start on a running controller is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = true
	c.baseCtx = ctx
	c.stopCh = make(chan struct{})
	stopCh := c.stopCh
	c.mu.Unlock()

	if c.source != nil {
		unsubscribe := c.source.Subscribe(c.setOnline)
		c.mu.Lock()
		c.unsubscribe = unsubscribe
		c.mu.Unlock()
	}

	c.CheckConnectivity(ctx)

	c.wg.Add(1)
	go c.intervalLoop(ctx, stopCh)

	c.log.Info("sync controller started", map[string]interface{}{
		"interval_seconds": c.cfg.Interval.Seconds(),
	})
}

// Stop cancels the interval loop, drops the connectivity subscription and
// waits for any triggered pass to finish.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return
	}
	c.isRunning = false
	close(c.stopCh)
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.wg.Wait()

	c.log.Info("sync controller stopped")
}

// IsRunning returns whether the controller is running.
func (c *Controller) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isRunning
}

// IsOnline returns the current online belief.
func (c *Controller) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isOnline
}

// CheckConnectivity probes now and updates the online belief. Coming back
// online triggers a pass like a pushed notification would.
func (c *Controller) CheckConnectivity(ctx context.Context) bool {
	online := c.probe.IsReachable(ctx)
	c.setOnline(online)
	return online
}

// ForceSync runs a pass now and waits for it, whatever the online belief.
// The engine still refuses to run while the remote is unreachable.
func (c *Controller) ForceSync(ctx context.Context) (*syncpkg.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PassTimeout)
	defer cancel()

	result, err := c.engine.Sync(ctx)
	c.publish()
	return result, err
}

// Refresh re-reads the pending count and notifies subscribers. It is meant
// to be called after local writes.
func (c *Controller) Refresh(ctx context.Context) {
	if _, err := c.engine.RefreshPending(ctx); err != nil {
		c.log.Error("refresh pending count failed", err)
		return
	}
	c.publish()
}

// Status returns the current sync status.
func (c *Controller) Status() Status {
	es := c.engine.Status()

	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		IsRunning:    c.isRunning,
		IsOnline:     c.isOnline,
		IsSyncing:    es.IsSyncing,
		PendingCount: es.PendingCount,
		LastSyncTime: es.LastSyncTime,
		LastError:    es.LastError,
	}
}

// Subscribe registers fn for status changes.
func (c *Controller) Subscribe(fn func(Status)) (unsubscribe func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			delete(c.subs, id)
		})
	}
}

func (c *Controller) publish() {
	status := c.Status()

	c.subMu.Lock()
	subs := make([]func(Status), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(status)
	}
}

// setOnline records the belief and triggers a pass on offline to online.
func (c *Controller) setOnline(online bool) {
	c.mu.Lock()
	wasOnline := c.isOnline
	c.isOnline = online
	c.mu.Unlock()

	if wasOnline == online {
		return
	}
	c.log.Info("online status changed", map[string]interface{}{
		"was_online": wasOnline,
		"is_online":  online,
	})
	c.publish()
	if online {
		c.trigger("reconnected")
	}
}

// intervalLoop ticks until stopped.
func (c *Controller) intervalLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

func (c *Controller) tick(ctx context.Context) {
	if !c.IsOnline() {
		return
	}
	pending, err := c.engine.RefreshPending(ctx)
	if err != nil {
		c.log.Error("read pending count failed", err)
		return
	}
	if pending > 0 {
		c.trigger("interval")
	}
}

// trigger starts a pass in the background while the controller runs. The
// engine declines overlapping passes itself.
func (c *Controller) trigger(reason string) {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return
	}
	ctx := c.baseCtx
	c.wg.Add(1)
	c.mu.Unlock()

	go c.runSync(ctx, reason)
}

func (c *Controller) runSync(ctx context.Context, reason string) {
	defer c.wg.Done()

	syncCtx, cancel := context.WithTimeout(ctx, c.cfg.PassTimeout)
	defer cancel()

	c.log.Debug("starting triggered sync", map[string]interface{}{"reason": reason})
	result, err := c.engine.Sync(syncCtx)
	c.publish()

	if err != nil {
		if errors.Is(err, errors.ErrSyncOffline) {
			c.log.Debug("triggered sync skipped while offline", map[string]interface{}{"reason": reason})
			return
		}
		c.log.ErrorWithCode("triggered sync failed", string(errors.ErrSyncFailed), err,
			map[string]interface{}{"reason": reason})
		return
	}
	if result.Skipped {
		c.log.Debug("sync already in progress, skipped", map[string]interface{}{"reason": reason})
	}
}
