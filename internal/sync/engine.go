// Package sync drains the outbox against a remote transport.
package sync

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/queue"
)

// Messages recorded as the sync error or on failed records.
const (
	OfflineMessage = "No internet connection"
	FailedMessage  = "Sync failed"
)

// errRejected is recorded when the transport declines a record without an error.
var errRejected = stderrors.New(FailedMessage)

// Outbox is the part of the persisted queue the engine drives.
type Outbox interface {
	Pending(ctx context.Context) ([]models.SyncQueueItem, error)
	MarkSyncing(ctx context.Context, id string) (bool, error)
	Complete(ctx context.Context, item *models.SyncQueueItem) error
	Failed(ctx context.Context, id, message string) error
	Release(ctx context.Context, item *models.SyncQueueItem) error
	PendingCount(ctx context.Context) (int, error)
	Now() time.Time
}

var _ Outbox = (*queue.Outbox)(nil)

// Reachability reports whether the remote side can be reached right now.
type Reachability interface {
	IsReachable(ctx context.Context) bool
}

// route is how a record kind is sent.
type route int

const (
	routePassThrough route = iota
	routeCreate
	routeUpdate
)

// routes maps every kind with a remote counterpart to its transport call.
// Kinds not listed, including every delete, pass through as successes.
var routes = map[queue.Kind]route{
	{Entity: models.EntityDowntime, Action: models.ActionCreate}:    routeCreate,
	{Entity: models.EntityDowntime, Action: models.ActionUpdate}:    routeUpdate,
	{Entity: models.EntityMaintenance, Action: models.ActionUpdate}: routeUpdate,
	{Entity: models.EntityAlert, Action: models.ActionCreate}:       routeCreate,
	{Entity: models.EntityAlert, Action: models.ActionUpdate}:       routeUpdate,
}

type entityRef struct {
	typ models.EntityType
	id  string
}

// Status is a snapshot of the engine state for display.
type Status struct {
	IsSyncing    bool       `json:"is_syncing"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	PendingCount int        `json:"pending_count"`
	LastError    string     `json:"last_error,omitempty"`
}

// Result summarizes one sync pass. Skipped is set when another pass was
// already running. Deferred counts records held back because an earlier
// record of the same entity failed in this pass.
type Result struct {
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Duration      time.Duration `json:"duration"`
	Skipped       bool          `json:"skipped"`
	Attempted     int           `json:"attempted"`
	Synced        int           `json:"synced"`
	Failed        int           `json:"failed"`
	PassedThrough int           `json:"passed_through"`
	Deferred      int           `json:"deferred"`
	PendingCount  int           `json:"pending_count"`
	Error         string        `json:"error,omitempty"`
}

// Engine sends outbox records to the transport one at a time, oldest first.
// Only one pass runs at a time.
type Engine struct {
	outbox    Outbox
	transport Transport
	online    Reachability
	log       *logging.Logger

	mu       sync.Mutex
	syncing  bool
	lastSync *time.Time
	pending  int
	lastErr  string
	handlers []EventHandler
}

// NewEngine creates an Engine.
func NewEngine(outbox Outbox, transport Transport, online Reachability, log *logging.Logger) *Engine {
	return &Engine{
		outbox:    outbox,
		transport: transport,
		online:    online,
		log:       logging.OrNop(log).Named("sync"),
	}
}

// AddEventHandler registers h for pass and item events.
func (e *Engine) AddEventHandler(h EventHandler) {
	if h == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// Status returns the current engine state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Status{
		IsSyncing:    e.syncing,
		PendingCount: e.pending,
		LastError:    e.lastErr,
	}
	if e.lastSync != nil {
		t := *e.lastSync
		s.LastSyncTime = &t
	}
	return s
}

// RefreshPending re-reads the outstanding record count.
func (e *Engine) RefreshPending(ctx context.Context) (int, error) {
	n, err := e.outbox.PendingCount(ctx)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	e.pending = n
	e.mu.Unlock()
	return n, nil
}

// Sync runs one pass over the outbox.
//
// A call made while a pass is running returns a skipped result and no error.
// When the remote is unreachable Sync fails with SYNC_OFFLINE without
// touching the outbox. Per-record failures are recorded on the record and do
// not fail the pass; a failure to read or update the outbox does.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		e.log.Debug("sync already in progress")
		return &Result{Skipped: true}, nil
	}
	e.syncing = true
	e.mu.Unlock()

	result := &Result{StartTime: e.outbox.Now()}
	e.emit(Event{Type: EventStarted, Time: result.StartTime})

	err := e.pass(ctx, result)

	result.EndTime = e.outbox.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	pending, countErr := e.outbox.PendingCount(context.WithoutCancel(ctx))
	if countErr == nil {
		result.PendingCount = pending
	}

	e.mu.Lock()
	e.syncing = false
	if countErr == nil {
		e.pending = pending
	}
	if err != nil {
		result.Error = passErrorMessage(err)
		e.lastErr = result.Error
	} else {
		end := result.EndTime
		e.lastSync = &end
		e.lastErr = ""
	}
	e.mu.Unlock()

	if err != nil {
		e.log.Error("sync pass failed", err, map[string]interface{}{
			"attempted": result.Attempted,
			"synced":    result.Synced,
		})
		e.emit(Event{Type: EventFailed, Time: result.EndTime, Result: result, Err: result.Error})
		return result, err
	}

	e.log.Info("sync pass finished", map[string]interface{}{
		"attempted":      result.Attempted,
		"synced":         result.Synced,
		"failed":         result.Failed,
		"passed_through": result.PassedThrough,
		"deferred":       result.Deferred,
		"pending":        result.PendingCount,
		"duration_ms":    result.Duration.Milliseconds(),
	})
	e.emit(Event{Type: EventCompleted, Time: result.EndTime, Result: result})
	return result, nil
}

func (e *Engine) pass(ctx context.Context, result *Result) error {
	if !e.online.IsReachable(ctx) {
		return apperrors.New(apperrors.ErrSyncOffline, OfflineMessage)
	}

	items, err := e.outbox.Pending(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSyncFailed, "read outbox", err)
	}

	// Entities whose record failed in this pass. Their later records wait
	// for the next pass so an update never lands before its create.
	failed := make(map[entityRef]bool)

	for i := range items {
		if err := ctx.Err(); err != nil {
			return apperrors.Wrap(apperrors.ErrSyncFailed, "sync pass interrupted", err)
		}

		item := &items[i]
		kind := queue.Kind{Entity: item.EntityType, Action: item.Action}
		ref := entityRef{item.EntityType, item.EntityID}
		if failed[ref] {
			result.Deferred++
			continue
		}

		claimed, err := e.outbox.MarkSyncing(ctx, item.ID)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrSyncFailed, "claim outbox record", err)
		}
		if !claimed {
			continue
		}
		result.Attempted++

		// Outcomes are written even when the pass deadline expired during
		// the call, so a timed-out record counts as a failed attempt.
		wctx := context.WithoutCancel(ctx)

		r, sendErr := e.send(ctx, item)
		if sendErr != nil {
			if err := e.outbox.Failed(wctx, item.ID, sendErr.Error()); err != nil {
				e.release(wctx, item)
				return apperrors.Wrap(apperrors.ErrSyncFailed, "record failed attempt", err)
			}
			failed[ref] = true
			result.Failed++

			e.log.Warn("sync item failed", map[string]interface{}{
				"id":          item.ID,
				"kind":        kind.String(),
				"entity_id":   item.EntityID,
				"retry_count": item.RetryCount + 1,
				"error":       sendErr.Error(),
			})
			e.emit(Event{Type: EventItemFailed, Time: e.outbox.Now(), Kind: kind, RecordID: item.ID, Err: sendErr.Error()})
			continue
		}

		if err := e.outbox.Complete(wctx, item); err != nil {
			e.release(wctx, item)
			return apperrors.Wrap(apperrors.ErrSyncFailed, "complete outbox record", err)
		}
		if r == routePassThrough {
			result.PassedThrough++
			e.log.Debug("passed through", map[string]interface{}{"id": item.ID, "kind": kind.String()})
		} else {
			result.Synced++
			e.log.Debug("synced", map[string]interface{}{"id": item.ID, "kind": kind.String()})
		}
		e.emit(Event{Type: EventItemSynced, Time: e.outbox.Now(), Kind: kind, RecordID: item.ID})
	}
	return nil
}

// release returns a claimed record to the selectable set after an
// engine-level failure, so the next pass picks it up again.
func (e *Engine) release(ctx context.Context, item *models.SyncQueueItem) {
	if err := e.outbox.Release(ctx, item); err != nil {
		e.log.Error("release outbox record failed", err, map[string]interface{}{"id": item.ID})
	}
}

// send decodes the record and dispatches it. A nil error means the remote
// accepted the record or the kind has no remote counterpart.
func (e *Engine) send(ctx context.Context, item *models.SyncQueueItem) (route, error) {
	payload, err := queue.Decode(item)
	if err != nil {
		return routePassThrough, err
	}

	r := routes[payload.Kind()]
	req := Request{
		RecordID:       item.ID,
		Kind:           payload.Kind(),
		EntityID:       payload.EntityID(),
		IdempotencyKey: IdempotencyKey(item, payload),
		Payload:        payload,
	}

	var ok bool
	switch r {
	case routeCreate:
		ok, err = e.transport.SyncCreate(ctx, req)
	case routeUpdate:
		ok, err = e.transport.SyncUpdate(ctx, req)
	default:
		return routePassThrough, nil
	}
	if err != nil {
		return r, err
	}
	if !ok {
		return r, errRejected
	}
	return r, nil
}

func (e *Engine) emit(ev Event) {
	e.mu.Lock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	for _, h := range handlers {
		h.OnSyncEvent(ev)
	}
}

// passErrorMessage is the text shown as the sync error. Coded errors show
// their message without the code prefix.
func passErrorMessage(err error) string {
	if apperrors.Is(err, apperrors.ErrSyncOffline) {
		return OfflineMessage
	}
	return err.Error()
}
