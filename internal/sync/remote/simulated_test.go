package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/shopfloor/backend/internal/config"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

// TestSimulated_success verifies a zero failure rate always succeeds.
func TestSimulated_success(t *testing.T) {
	s := NewSimulated(config.SimulatedRemoteConfig{Jitter: time.Millisecond}, logging.NewTest(t), WithSeed(7))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := s.SyncCreate(ctx, downtimeRequest(models.ActionCreate))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := s.SyncUpdate(ctx, downtimeRequest(models.ActionUpdate))
	require.NoError(t, err)
	assert.True(t, ok)

	creates, updates := s.Counts()
	assert.Equal(t, 5, creates)
	assert.Equal(t, 1, updates)
	assert.NoError(t, s.HealthCheck(ctx))
	assert.NoError(t, s.Close())
}

// TestSimulated_alwaysFails verifies a failure rate of one always throws.
func TestSimulated_alwaysFails(t *testing.T) {
	s := NewSimulated(config.SimulatedRemoteConfig{FailureRate: 1}, logging.NewTest(t), WithSeed(1))

	ok, err := s.SyncCreate(context.Background(), downtimeRequest(models.ActionCreate))
	assert.False(t, ok)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransport))

	creates, _ := s.Counts()
	assert.Zero(t, creates)
}

// TestSimulated_cancelled verifies the latency wait honours the context.
func TestSimulated_cancelled(t *testing.T) {
	s := NewSimulated(config.SimulatedRemoteConfig{Latency: time.Hour}, logging.NewTest(t))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	ok, err := s.SyncCreate(ctx, downtimeRequest(models.ActionCreate))
	assert.False(t, ok)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransport))
}

// TestNew verifies the factory picks the configured transport.
func TestNew(t *testing.T) {
	cfg := config.Default().Remote

	r, err := New(cfg, "tenant_demo", nil)
	require.NoError(t, err)
	assert.IsType(t, &Simulated{}, r)

	cfg.Kind = config.RemoteHTTP
	r, err = New(cfg, "tenant_demo", nil)
	require.NoError(t, err)
	assert.IsType(t, &HTTP{}, r)

	cfg.Kind = "carrier-pigeon"
	_, err = New(cfg, "tenant_demo", nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrConfig))
}
