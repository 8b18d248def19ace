package sync

import (
	"context"
	"time"

	"github.com/kimhsiao/shopfloor/backend/internal/sync/queue"
)

// Syncer defines the interface for sync engine operations.
// This interface allows for mocking in tests and alternative implementations.
type Syncer interface {
	// Sync performs one pass over the outbox.
	Sync(ctx context.Context) (*Result, error)

	// Status returns the current engine state.
	Status() Status

	// RefreshPending re-reads the number of outstanding records.
	RefreshPending(ctx context.Context) (int, error)

	// AddEventHandler registers a handler for sync notifications.
	AddEventHandler(handler EventHandler)
}

var _ Syncer = (*Engine)(nil)

// EventType names a sync notification.
type EventType string

const (
	EventStarted    EventType = "sync_started"
	EventCompleted  EventType = "sync_completed"
	EventFailed     EventType = "sync_failed"
	EventItemSynced EventType = "item_synced"
	EventItemFailed EventType = "item_failed"
)

// Event is emitted during and after a pass. Result is set on pass-level
// events; Kind and RecordID on item events.
type Event struct {
	Type     EventType  `json:"type"`
	Time     time.Time  `json:"time"`
	Kind     queue.Kind `json:"-"`
	RecordID string     `json:"record_id,omitempty"`
	Err      string     `json:"error,omitempty"`
	Result   *Result    `json:"result,omitempty"`
}

// EventHandler receives sync events. Handlers run on the syncing goroutine
// and must not call back into the engine's Sync.
type EventHandler interface {
	OnSyncEvent(event Event)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(Event)

// OnSyncEvent calls f(event).
func (f EventHandlerFunc) OnSyncEvent(event Event) { f(event) }
