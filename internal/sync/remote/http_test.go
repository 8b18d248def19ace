// Package remote provides unit tests for the sync transports.
package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimhsiao/shopfloor/backend/internal/config"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	shopsync "github.com/kimhsiao/shopfloor/backend/internal/sync"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/queue"
)

type seenRequest struct {
	method, path, key, auth string
	body                    map[string]interface{}
}

// recordingServer answers every request with status and keeps what it saw.
func recordingServer(t *testing.T, status int) (*httptest.Server, func() []seenRequest) {
	t.Helper()
	var mu sync.Mutex
	var seen []seenRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)
		mu.Lock()
		seen = append(seen, seenRequest{
			method: r.Method, path: r.URL.Path,
			key: r.Header.Get(IdempotencyHeader), auth: r.Header.Get("Authorization"),
			body: body,
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []seenRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]seenRequest(nil), seen...)
	}
}

func httpConfig(baseURL string) config.HTTPRemoteConfig {
	return config.HTTPRemoteConfig{BaseURL: baseURL, Token: "secret", Timeout: 2 * time.Second}
}

func downtimeRequest(action models.Action) shopsync.Request {
	event := models.DowntimeEvent{ID: "D-1", UniqueID: "u-1", MachineID: "M-101", ReasonCode: "PENDING"}
	var p queue.Payload = queue.DowntimeCreate{Event: event}
	if action == models.ActionUpdate {
		p = queue.DowntimeUpdate{Event: event, Changed: []string{"notes"}}
	}
	return shopsync.Request{
		RecordID:       "rec-1",
		Kind:           p.Kind(),
		EntityID:       "D-1",
		IdempotencyKey: "u-1",
		Payload:        p,
	}
}

// =====================================================
// HTTP Transport Tests
// =====================================================

// TestHTTP_SyncCreate verifies creates are posted with the idempotency key.
func TestHTTP_SyncCreate(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusCreated)
	h := NewHTTP(httpConfig(srv.URL), logging.NewTest(t))

	ok, err := h.SyncCreate(context.Background(), downtimeRequest(models.ActionCreate))
	require.NoError(t, err)
	assert.True(t, ok)

	reqs := seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].method)
	assert.Equal(t, "/v1/downtime", reqs[0].path)
	assert.Equal(t, "u-1", reqs[0].key)
	assert.Equal(t, "Bearer secret", reqs[0].auth)
	event, _ := reqs[0].body["event"].(map[string]interface{})
	assert.Equal(t, "M-101", event["machine_id"])
}

// TestHTTP_SyncUpdate verifies updates are patched at the entity path.
func TestHTTP_SyncUpdate(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusOK)
	h := NewHTTP(httpConfig(srv.URL), logging.NewTest(t))

	ok, err := h.SyncUpdate(context.Background(), downtimeRequest(models.ActionUpdate))
	require.NoError(t, err)
	assert.True(t, ok)

	reqs := seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPatch, reqs[0].method)
	assert.Equal(t, "/v1/downtime/D-1", reqs[0].path)
	assert.Equal(t, []interface{}{"notes"}, reqs[0].body["changed"])
}

// TestHTTP_rejected verifies a non-2xx status is a false answer.
func TestHTTP_rejected(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusConflict, http.StatusInternalServerError} {
		srv, _ := recordingServer(t, status)
		h := NewHTTP(httpConfig(srv.URL), logging.NewTest(t))

		ok, err := h.SyncCreate(context.Background(), downtimeRequest(models.ActionCreate))
		assert.NoError(t, err, "status %d", status)
		assert.False(t, ok, "status %d", status)
	}
}

// TestHTTP_unreachable verifies network failures are transport errors.
func TestHTTP_unreachable(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusOK)
	url := srv.URL
	srv.Close()

	h := NewHTTP(httpConfig(url), logging.NewTest(t))
	ok, err := h.SyncCreate(context.Background(), downtimeRequest(models.ActionCreate))
	assert.False(t, ok)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransport))

	assert.Error(t, h.HealthCheck(context.Background()))
}

// TestHTTP_rateLimit verifies a cancelled wait for a send slot fails the call.
func TestHTTP_rateLimit(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusOK)
	cfg := httpConfig(srv.URL)
	cfg.RatePerSecond = 0.001
	cfg.Burst = 1
	h := NewHTTP(cfg, logging.NewTest(t))

	ok, err := h.SyncCreate(context.Background(), downtimeRequest(models.ActionCreate))
	require.NoError(t, err)
	assert.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	ok, err = h.SyncCreate(ctx, downtimeRequest(models.ActionCreate))
	assert.False(t, ok)
	assert.True(t, apperrors.Is(err, apperrors.ErrTransport))
	assert.Len(t, seen(), 1)
}

// TestHTTP_HealthCheck verifies the health endpoint.
func TestHTTP_HealthCheck(t *testing.T) {
	srv, seen := recordingServer(t, http.StatusNoContent)
	h := NewHTTP(httpConfig(srv.URL), logging.NewTest(t))

	require.NoError(t, h.HealthCheck(context.Background()))
	assert.Equal(t, "/v1/health", seen()[0].path)
	assert.NoError(t, h.Close())
}
