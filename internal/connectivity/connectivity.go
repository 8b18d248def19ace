// Package connectivity answers "can the device reach the remote side" and
// notifies subscribers when the answer changes.
package connectivity

import (
	"context"
	"sync"
)

// Probe checks reachability on demand.
type Probe interface {
	IsReachable(ctx context.Context) bool
}

// Source pushes reachability changes. The returned function removes the
// subscription and is safe to call more than once.
type Source interface {
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) bool

// IsReachable calls f(ctx).
func (f ProbeFunc) IsReachable(ctx context.Context) bool { return f(ctx) }

// HealthChecker is anything that can report its own health, such as a
// remote transport.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthProbe treats a passing health check as reachable.
func HealthProbe(h HealthChecker) Probe {
	return ProbeFunc(func(ctx context.Context) bool {
		return h.HealthCheck(ctx) == nil
	})
}

// broadcaster fans a state change out to subscribers.
type broadcaster struct {
	subMu  sync.Mutex
	nextID int
	subs   map[int]func(bool)
}

func (b *broadcaster) Subscribe(fn func(online bool)) func() {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(bool))
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.subMu.Lock()
			defer b.subMu.Unlock()
			delete(b.subs, id)
		})
	}
}

func (b *broadcaster) publish(online bool) {
	b.subMu.Lock()
	subs := make([]func(bool), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.subMu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

func (b *broadcaster) count() int {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	return len(b.subs)
}

// Manual is a Probe and Source whose state is set by the host, for example
// from an OS network callback on mobile or a CLI flag.
type Manual struct {
	broadcaster
	mu     sync.RWMutex
	online bool
}

// NewManual creates a Manual source with the given initial state.
func NewManual(online bool) *Manual {
	return &Manual{online: online}
}

// Set records the state and notifies subscribers if it changed.
func (m *Manual) Set(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()
	if changed {
		m.publish(online)
	}
}

// IsReachable returns the last state set.
func (m *Manual) IsReachable(context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Subscribers returns the number of live subscriptions.
func (m *Manual) Subscribers() int { return m.count() }

var (
	_ Probe  = (*Manual)(nil)
	_ Source = (*Manual)(nil)
	_ Probe  = (*Poller)(nil)
	_ Source = (*Poller)(nil)
	_ Probe  = (*HTTPProbe)(nil)
)
