package remote

import (
	"context"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/kimhsiao/shopfloor/backend/internal/config"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	shopsync "github.com/kimhsiao/shopfloor/backend/internal/sync"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/queue"
)

// Header carrying the deduplication key for retried sends.
const IdempotencyHeader = "Idempotency-Key"

// HTTP sends records as JSON: creates as POST /v1/{entity} and updates as
// PATCH /v1/{entity}/{id}. Any 2xx answer is success.
type HTTP struct {
	client  *resty.Client
	limiter *rate.Limiter
	log     *logging.Logger
}

// NewHTTP creates an HTTP transport. Requests are paced by a token bucket
// of cfg.RatePerSecond with cfg.Burst; a non-positive rate disables pacing.
// Retries are left to the outbox, so the client itself never retries.
func NewHTTP(cfg config.HTTPRemoteConfig, log *logging.Logger) *HTTP {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &HTTP{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		log:     logging.OrNop(log).Named("remote.http"),
	}
}

// SyncCreate posts a new entity.
func (h *HTTP) SyncCreate(ctx context.Context, req shopsync.Request) (bool, error) {
	r, err := h.request(ctx, req)
	if err != nil {
		return false, err
	}
	resp, err := r.SetPathParam("entity", string(req.Kind.Entity)).Post("/v1/{entity}")
	return h.outcome(req, resp, err)
}

// SyncUpdate patches an existing entity.
func (h *HTTP) SyncUpdate(ctx context.Context, req shopsync.Request) (bool, error) {
	r, err := h.request(ctx, req)
	if err != nil {
		return false, err
	}
	resp, err := r.SetPathParams(map[string]string{
		"entity": string(req.Kind.Entity),
		"id":     req.EntityID,
	}).Patch("/v1/{entity}/{id}")
	return h.outcome(req, resp, err)
}

// HealthCheck calls GET /v1/health.
func (h *HTTP) HealthCheck(ctx context.Context) error {
	resp, err := h.client.R().SetContext(ctx).Get("/v1/health")
	if err != nil {
		return apperrors.Wrap(apperrors.ErrTransport, "health check", err)
	}
	if !resp.IsSuccess() {
		return apperrors.Newf(apperrors.ErrTransport, "health check returned %d", resp.StatusCode())
	}
	return nil
}

// Close releases idle connections.
func (h *HTTP) Close() error {
	h.client.GetClient().CloseIdleConnections()
	return nil
}

func (h *HTTP) request(ctx context.Context, req shopsync.Request) (*resty.Request, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransport, "wait for send slot", err)
	}
	body, err := queue.Encode(req.Payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransport, "encode payload", err)
	}
	return h.client.R().
		SetContext(ctx).
		SetHeader(IdempotencyHeader, req.IdempotencyKey).
		SetBody(body), nil
}

func (h *HTTP) outcome(req shopsync.Request, resp *resty.Response, err error) (bool, error) {
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrTransport, "send "+req.Kind.String(), err)
	}
	if !resp.IsSuccess() {
		h.log.Warn("remote rejected record", map[string]interface{}{
			"record_id": req.RecordID,
			"kind":      req.Kind.String(),
			"status":    resp.StatusCode(),
		})
		return false, nil
	}
	return true, nil
}
