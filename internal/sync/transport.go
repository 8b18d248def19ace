package sync

import (
	"context"

	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/queue"
)

// Request is one outbox record ready to send.
type Request struct {
	RecordID       string
	Kind           queue.Kind
	EntityID       string
	IdempotencyKey string
	Payload        queue.Payload
}

// Transport is the remote side of sync. A false result and a returned error
// both count as a failed attempt.
type Transport interface {
	// SyncCreate sends a newly created entity.
	SyncCreate(ctx context.Context, req Request) (bool, error)

	// SyncUpdate sends a change to an existing entity.
	SyncUpdate(ctx context.Context, req Request) (bool, error)
}

// IdempotencyKey lets the remote side deduplicate retried sends. Downtime
// events carry their own key; other records use the outbox record id.
func IdempotencyKey(item *models.SyncQueueItem, p queue.Payload) string {
	switch v := p.(type) {
	case queue.DowntimeCreate:
		if v.Event.UniqueID != "" {
			return v.Event.UniqueID
		}
	case queue.DowntimeUpdate:
		if v.Event.UniqueID != "" {
			return v.Event.UniqueID + ":" + item.ID
		}
	}
	return item.ID
}
