// Package alertgen raises simulated machine alerts on a fixed interval so a
// demo floor has something to acknowledge.
package alertgen

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/repository"
)

// DefaultInterval is how often an alert is raised.
const DefaultInterval = 30 * time.Second

// Messages are the conditions a simulated alert can report.
var Messages = []string{
	"High temperature detected",
	"Vibration exceeds threshold",
	"Oil pressure low",
	"Belt tension abnormal",
	"Speed variance detected",
	"Power consumption spike",
	"Sensor malfunction detected",
	"Unusual noise pattern",
	"Maintenance overdue alert",
	"Calibration required",
	"Motor current high",
	"Coolant level low",
}

// MachineLister lists the machines an alert can be raised against.
type MachineLister interface {
	List(ctx context.Context) ([]models.Machine, error)
}

// Generator creates one alert per tick through the alert repository, so
// generated alerts are queued for sync like any other.
type Generator struct {
	alerts   repository.AlertCreator
	machines MachineLister
	interval time.Duration
	log      *logging.Logger

	mu        sync.Mutex
	rng       *rand.Rand
	isRunning bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// Option configures a Generator.
type Option func(*Generator)

// WithSeed makes the machine, message and severity picks reproducible.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// New creates a Generator. A non-positive interval means DefaultInterval.
func New(alerts repository.AlertCreator, machines MachineLister, interval time.Duration, log *logging.Logger, opts ...Option) *Generator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	g := &Generator{
		alerts:   alerts,
		machines: machines,
		interval: interval,
		log:      logging.OrNop(log).Named("alertgen"),
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start begins generating. Calling Start on a running generator is a no-op.
func (g *Generator) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isRunning {
		g.log.Debug("alert generator already running")
		return
	}
	g.isRunning = true
	g.stopCh = make(chan struct{})

	g.wg.Add(1)
	go g.loop(ctx, g.stopCh)

	g.log.Info("alert generator started", map[string]interface{}{
		"interval_seconds": g.interval.Seconds(),
	})
}

// Stop halts generation and waits for an in-progress alert to be written.
func (g *Generator) Stop() {
	g.mu.Lock()
	if !g.isRunning {
		g.mu.Unlock()
		return
	}
	g.isRunning = false
	close(g.stopCh)
	g.mu.Unlock()

	g.wg.Wait()
	g.log.Info("alert generator stopped")
}

// IsRunning returns whether the generator is running.
func (g *Generator) IsRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isRunning
}

// Generate raises one random alert now. It returns nil without error when
// there are no machines.
func (g *Generator) Generate(ctx context.Context) (*models.Alert, error) {
	machines, err := g.machines.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(machines) == 0 {
		return nil, nil
	}

	g.mu.Lock()
	machine := machines[g.rng.IntN(len(machines))]
	message := Messages[g.rng.IntN(len(Messages))]
	severity := models.Severities[g.rng.IntN(len(models.Severities))]
	g.mu.Unlock()

	alert, err := g.alerts.Create(ctx, repository.NewAlert{
		MachineID: machine.ID,
		Message:   message,
		Severity:  severity,
	})
	if err != nil {
		return nil, err
	}

	g.log.Debug("generated alert", map[string]interface{}{
		"id":         alert.ID,
		"machine_id": alert.MachineID,
		"severity":   string(alert.Severity),
	})
	return alert, nil
}

func (g *Generator) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer g.wg.Done()

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := g.Generate(ctx); err != nil {
				g.log.Error("generate alert failed", err)
			}
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
