package remote

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/kimhsiao/shopfloor/backend/internal/config"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	shopsync "github.com/kimhsiao/shopfloor/backend/internal/sync"
)

// Simulated stands in for a real remote. Each call waits Latency plus a
// random share of Jitter and then fails with probability FailureRate.
type Simulated struct {
	cfg config.SimulatedRemoteConfig
	log *logging.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	creates int
	updates int
}

// SimulatedOption configures a Simulated transport.
type SimulatedOption func(*Simulated)

// WithSeed makes the jitter and failure draws reproducible.
func WithSeed(seed uint64) SimulatedOption {
	return func(s *Simulated) {
		s.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// NewSimulated creates a simulated transport.
func NewSimulated(cfg config.SimulatedRemoteConfig, log *logging.Logger, opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		cfg: cfg,
		log: logging.OrNop(log).Named("remote.simulated"),
		rng: rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncCreate pretends to send a create.
func (s *Simulated) SyncCreate(ctx context.Context, req shopsync.Request) (bool, error) {
	if err := s.call(ctx, req); err != nil {
		return false, err
	}
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	return true, nil
}

// SyncUpdate pretends to send an update.
func (s *Simulated) SyncUpdate(ctx context.Context, req shopsync.Request) (bool, error) {
	if err := s.call(ctx, req); err != nil {
		return false, err
	}
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	return true, nil
}

// HealthCheck waits one latency period and succeeds.
func (s *Simulated) HealthCheck(ctx context.Context) error {
	return s.wait(ctx, s.cfg.Latency)
}

// Close is a no-op.
func (s *Simulated) Close() error { return nil }

// Counts returns how many creates and updates were accepted.
func (s *Simulated) Counts() (creates, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.creates, s.updates
}

func (s *Simulated) call(ctx context.Context, req shopsync.Request) error {
	s.mu.Lock()
	delay := s.cfg.Latency
	if s.cfg.Jitter > 0 {
		delay += time.Duration(s.rng.Int64N(int64(s.cfg.Jitter)))
	}
	fail := s.cfg.FailureRate > 0 && s.rng.Float64() < s.cfg.FailureRate
	s.mu.Unlock()

	if err := s.wait(ctx, delay); err != nil {
		return err
	}
	if fail {
		s.log.Debug("simulated failure", map[string]interface{}{"record_id": req.RecordID})
		return apperrors.New(apperrors.ErrTransport, "simulated network error")
	}
	return nil
}

func (s *Simulated) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return apperrors.Wrap(apperrors.ErrTransport, "simulated call interrupted", ctx.Err())
	case <-timer.C:
		return nil
	}
}
