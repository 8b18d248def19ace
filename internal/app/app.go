// Package app wires the store, repositories, outbox, sync engine and
// controller into one explicitly constructed object per process.
package app

import (
	"context"
	stderrors "errors"

	"github.com/kimhsiao/shopfloor/backend/internal/alertgen"
	"github.com/kimhsiao/shopfloor/backend/internal/config"
	"github.com/kimhsiao/shopfloor/backend/internal/connectivity"
	"github.com/kimhsiao/shopfloor/backend/internal/db"
	"github.com/kimhsiao/shopfloor/backend/internal/kpi"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	"github.com/kimhsiao/shopfloor/backend/internal/metrics"
	"github.com/kimhsiao/shopfloor/backend/internal/repository"
	syncpkg "github.com/kimhsiao/shopfloor/backend/internal/sync"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/queue"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/remote"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/scheduler"
)

// Options override parts of the wiring.
type Options struct {
	// Log replaces the logger built from the configuration.
	Log *logging.Logger

	// Clock replaces the system clock used to stamp writes.
	Clock db.Clock

	// Remote replaces the transport selected by the configuration.
	Remote remote.Remote

	// Network hands connectivity to the host. When nil the remote is polled.
	Network *connectivity.Manual
}

// App holds every component of a running device.
type App struct {
	Config     *config.Config
	Log        *logging.Logger
	Store      *db.DB
	Outbox     *queue.Outbox
	Repos      *repository.Repositories
	Remote     remote.Remote
	Engine     *syncpkg.Engine
	Controller *scheduler.Controller
	KPI        *kpi.Service
	Alerts     *alertgen.Generator
	Metrics    *metrics.Metrics // nil when metrics are disabled
	Network    *connectivity.Manual

	poller      *connectivity.Poller
	unsubscribe []func()
}

// New opens the store, applies migrations and seed data, recovers records
// left in flight by a crash, and builds the remaining components. Nothing is
// started. A store that cannot be opened or migrated is returned as an error
// and the caller must not continue.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := opts.Log
	if log == nil {
		l, err := logging.New(logging.LogLevel(cfg.Log.Level), cfg.Log.Format, "shopfloor")
		if err != nil {
			return nil, err
		}
		log = l
	}

	dbOpts := []db.Option{db.WithLogger(log)}
	if opts.Clock != nil {
		dbOpts = append(dbOpts, db.WithClock(opts.Clock))
	}
	store, err := db.Open(cfg.DBPath(), dbOpts...)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Log:     log,
		Store:   store,
		Outbox:  queue.New(store, log),
		Network: opts.Network,
	}

	if _, err := a.Outbox.RecoverInFlight(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	a.Repos = repository.New(store, a.Outbox, cfg.TenantID, log)

	a.Remote = opts.Remote
	if a.Remote == nil {
		if a.Remote, err = remote.New(cfg.Remote, cfg.TenantID, log); err != nil {
			_ = store.Close()
			return nil, err
		}
	}

	var probe connectivity.Probe
	var source connectivity.Source
	if a.Network != nil {
		probe, source = a.Network, a.Network
	} else {
		var check connectivity.Probe = connectivity.HealthProbe(a.Remote)
		if cfg.Connectivity.ProbeURL != "" {
			check = connectivity.NewHTTPProbe(cfg.Connectivity.ProbeURL, cfg.Connectivity.Timeout)
		}
		a.poller = connectivity.NewPoller(check, cfg.Connectivity.PollInterval, cfg.Connectivity.Timeout, log)
		probe, source = a.poller, a.poller
	}

	a.Engine = syncpkg.NewEngine(a.Outbox, a.Remote, probe, log)
	a.Controller = scheduler.NewController(a.Engine, probe, source, scheduler.Config{
		Interval:    cfg.Sync.Interval,
		PassTimeout: cfg.Sync.PassTimeout,
	}, log)

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New(func() int { return a.Engine.Status().PendingCount })
		a.Engine.AddEventHandler(a.Metrics)
		a.unsubscribe = append(a.unsubscribe, a.Controller.Subscribe(func(s scheduler.Status) {
			a.Metrics.SetOnline(s.IsOnline)
		}))
	}

	// Local writes refresh the pending count the UI shows.
	a.unsubscribe = append(a.unsubscribe, a.Repos.Changes.Subscribe(func(repository.Change) {
		a.Controller.Refresh(context.Background())
	}))

	a.KPI = kpi.New(store, log)
	a.Alerts = alertgen.New(a.Repos.Alerts, a.Repos.Machines, cfg.AlertGenerator.Interval, log)

	if _, err := a.Engine.RefreshPending(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Start runs the background components: connectivity polling, the sync
// controller and, when enabled, the alert generator.
func (a *App) Start(ctx context.Context) {
	if a.poller != nil {
		a.poller.Start(ctx)
	}
	a.Controller.Start(ctx)
	if a.Config.AlertGenerator.Enabled {
		a.Alerts.Start(ctx)
	}
	a.Log.Info("shopfloor started", map[string]interface{}{
		"remote":   a.Config.Remote.Kind,
		"tenant":   a.Config.TenantID,
		"db_path":  a.Config.DBPath(),
		"metrics":  a.Metrics != nil,
		"alertgen": a.Config.AlertGenerator.Enabled,
	})
}

// Close stops background work and releases the remote and the store. It is
// safe to call on an App that was never started.
func (a *App) Close() error {
	a.Alerts.Stop()
	a.Controller.Stop()
	if a.poller != nil {
		a.poller.Stop()
	}
	for _, fn := range a.unsubscribe {
		fn()
	}
	a.unsubscribe = nil

	var errs []error
	if a.Remote != nil {
		errs = append(errs, a.Remote.Close())
	}
	errs = append(errs, a.Store.Close())
	_ = a.Log.Sync()
	return stderrors.Join(errs...)
}
