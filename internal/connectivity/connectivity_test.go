// Package connectivity provides unit tests for reachability probes and sources.
package connectivity

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/shopfloor/backend/internal/logging"
)

type recorder struct {
	mu     sync.Mutex
	states []bool
}

func (r *recorder) add(online bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, online)
}

func (r *recorder) get() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.states...)
}

// =====================================================
// Manual Tests
// =====================================================

// TestManual verifies only changes are published.
func TestManual(t *testing.T) {
	m := NewManual(false)
	rec := &recorder{}
	unsubscribe := m.Subscribe(rec.add)
	assert.Equal(t, 1, m.Subscribers())

	m.Set(false)
	m.Set(true)
	m.Set(true)
	m.Set(false)
	assert.Equal(t, []bool{true, false}, rec.get())
	assert.False(t, m.IsReachable(context.Background()))

	unsubscribe()
	unsubscribe()
	assert.Zero(t, m.Subscribers())
	m.Set(true)
	assert.Len(t, rec.get(), 2)
}

// =====================================================
// Probe Tests
// =====================================================

// TestHTTPProbe verifies server answers and connection failures.
func TestHTTPProbe(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusNoContent)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	p := NewHTTPProbe(srv.URL, time.Second)
	ctx := context.Background()
	assert.True(t, p.IsReachable(ctx))

	status.Store(http.StatusNotFound)
	assert.True(t, p.IsReachable(ctx), "any answer means the network is up")

	status.Store(http.StatusServiceUnavailable)
	assert.False(t, p.IsReachable(ctx))

	srv.Close()
	assert.False(t, p.IsReachable(ctx))
}

type checker struct{ err error }

func (c checker) HealthCheck(context.Context) error { return c.err }

// TestHealthProbe verifies a health check adapts to a probe.
func TestHealthProbe(t *testing.T) {
	assert.True(t, HealthProbe(checker{}).IsReachable(context.Background()))
	assert.False(t, HealthProbe(checker{err: stderrors.New("down")}).IsReachable(context.Background()))
}

// =====================================================
// Poller Tests
// =====================================================

// TestPoller verifies state changes are published from the polling loop.
func TestPoller(t *testing.T) {
	var up atomic.Bool
	probe := ProbeFunc(func(context.Context) bool { return up.Load() })
	p := NewPoller(probe, 5*time.Millisecond, time.Second, logging.NewTest(t))

	rec := &recorder{}
	defer p.Subscribe(rec.add)()

	p.Start(context.Background())
	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []bool{false}, rec.get(), "the first probe is always published")

	up.Store(true)
	require.Eventually(t, func() bool { return len(rec.get()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []bool{false, true}, rec.get())

	p.Stop()
	p.Stop()
	n := len(rec.get())
	up.Store(false)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, rec.get(), n, "no probes after Stop")
}
