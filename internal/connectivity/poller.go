package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/kimhsiao/shopfloor/backend/internal/logging"
)

// Poller turns a Probe into a Source by probing on an interval and
// publishing changes. It serves hosts without OS network notifications.
type Poller struct {
	broadcaster
	probe    Probe
	interval time.Duration
	timeout  time.Duration
	log      *logging.Logger

	mu      sync.RWMutex
	known   bool
	online  bool
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPoller creates a Poller. timeout bounds each probe.
func NewPoller(probe Probe, interval, timeout time.Duration, log *logging.Logger) *Poller {
	return &Poller{
		probe:    probe,
		interval: interval,
		timeout:  timeout,
		log:      logging.OrNop(log).Named("connectivity"),
	}
}

// Start probes once and then every interval until Stop.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go p.loop(ctx, p.stopCh)
}

// Stop ends polling and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
}

// IsReachable probes now and publishes a change if there is one.
func (p *Poller) IsReachable(ctx context.Context) bool {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	online := p.probe.IsReachable(ctx)

	p.mu.Lock()
	changed := !p.known || p.online != online
	p.known = true
	p.online = online
	p.mu.Unlock()

	if changed {
		p.log.Info("connectivity changed", map[string]interface{}{"online": online})
		p.publish(online)
	}
	return online
}

func (p *Poller) loop(ctx context.Context, stopCh <-chan struct{}) {
	defer p.wg.Done()

	p.IsReachable(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			p.IsReachable(ctx)
		}
	}
}
