// Package remote provides the transports the sync engine sends outbox
// records through: JSON over HTTP, MQTT publish, and an in-process
// simulation for demos and tests.
package remote

import (
	"context"
	"encoding/json"

	"github.com/kimhsiao/shopfloor/backend/internal/config"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	shopsync "github.com/kimhsiao/shopfloor/backend/internal/sync"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/queue"
)

// Remote is a transport that can also report its own health and release
// its connections.
type Remote interface {
	shopsync.Transport
	HealthCheck(ctx context.Context) error
	Close() error
}

var (
	_ Remote = (*HTTP)(nil)
	_ Remote = (*MQTT)(nil)
	_ Remote = (*Simulated)(nil)
)

// New builds the transport selected by cfg.Kind.
func New(cfg config.RemoteConfig, tenantID string, log *logging.Logger) (Remote, error) {
	switch cfg.Kind {
	case config.RemoteHTTP:
		return NewHTTP(cfg.HTTP, log), nil
	case config.RemoteMQTT:
		return NewMQTT(cfg.MQTT, tenantID, log)
	case config.RemoteSimulated, "":
		return NewSimulated(cfg.Simulated, log), nil
	default:
		return nil, apperrors.Newf(apperrors.ErrConfig, "unknown remote kind %q", cfg.Kind)
	}
}

// message is the body published for one record on transports that carry
// their own metadata.
type message struct {
	RecordID       string          `json:"record_id"`
	IdempotencyKey string          `json:"idempotency_key"`
	EntityType     string          `json:"entity_type"`
	Action         string          `json:"action"`
	EntityID       string          `json:"entity_id"`
	Payload        json.RawMessage `json:"payload"`
}

func newMessage(req shopsync.Request) (*message, error) {
	body, err := queue.Encode(req.Payload)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrTransport, "encode payload", err)
	}
	return &message{
		RecordID:       req.RecordID,
		IdempotencyKey: req.IdempotencyKey,
		EntityType:     string(req.Kind.Entity),
		Action:         string(req.Kind.Action),
		EntityID:       req.EntityID,
		Payload:        body,
	}, nil
}
