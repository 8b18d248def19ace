// Package queue provides the persisted outbox of mutations waiting for remote
// confirmation, together with its retry bookkeeping.
//
// Record lifecycle:
//
//	pending -> syncing -> synced
//	pending -> syncing -> failed -> syncing -> ... (until RetryLimit attempts)
//
// A failed record stays selectable while retry_count < RetryLimit and is
// excluded from selection forever after.
package queue

import (
	"context"
	"database/sql"
	"time"

	"github.com/kimhsiao/shopfloor/backend/internal/db"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/uuid"
)

// RetryLimit is the number of attempts after which a record is no longer selected.
const RetryLimit = 3

const itemColumns = `id, entity_type, entity_id, action, payload, status, retry_count,
	created_at, last_attempt, error_message`

// outstandingClause matches records that still represent work to do.
const outstandingClause = `(status IN ('pending', 'syncing') OR (status = 'failed' AND retry_count < ?))`

// Outbox manages the sync_queue table.
type Outbox struct {
	store *db.DB
	log   *logging.Logger
}

// New creates an Outbox over store.
func New(store *db.DB, log *logging.Logger) *Outbox {
	return &Outbox{store: store, log: logging.OrNop(log).Named("outbox")}
}

// Stats summarises the outbox by status.
type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Syncing int `json:"syncing"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	// Exhausted counts failed records that reached RetryLimit.
	Exhausted int `json:"exhausted"`
}

// ListFilter narrows List.
type ListFilter struct {
	Status models.SyncStatus
	Limit  int
}

// Now reads the store clock.
func (o *Outbox) Now() time.Time {
	return o.store.Now()
}

// Enqueue appends a pending record for p using q, which is normally the
// transaction that wrote the entity.
func (o *Outbox) Enqueue(ctx context.Context, q db.Querier, p Payload) (*models.SyncQueueItem, error) {
	kind := p.Kind()
	if !kind.Entity.Valid() || !kind.Action.Valid() {
		return nil, apperrors.Newf(apperrors.ErrValidation, "invalid outbox kind %s", kind)
	}
	if p.EntityID() == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "outbox record needs an entity id")
	}

	body, err := Encode(p)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternal, "encode outbox payload", err)
	}

	item := &models.SyncQueueItem{
		ID:         uuid.New(),
		EntityType: kind.Entity,
		EntityID:   p.EntityID(),
		Action:     kind.Action,
		Payload:    body,
		Status:     models.SyncStatusPending,
		CreatedAt:  o.store.Now(),
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO sync_queue (id, entity_type, entity_id, action, payload, status, retry_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		item.ID, string(item.EntityType), item.EntityID, string(item.Action), string(item.Payload),
		string(item.Status), db.FormatTime(item.CreatedAt),
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "enqueue outbox record", err)
	}

	o.log.Debug("enqueued", map[string]interface{}{
		"id": item.ID, "kind": kind.String(), "entity_id": item.EntityID,
	})
	return item, nil
}

// Pending returns the records to attempt next: pending or failed, below
// RetryLimit, oldest first. Ties on created_at fall back to insertion order.
func (o *Outbox) Pending(ctx context.Context) ([]models.SyncQueueItem, error) {
	rows, err := o.store.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM sync_queue
		WHERE status IN ('pending', 'failed') AND retry_count < ?
		ORDER BY created_at ASC, rowid ASC`, RetryLimit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "select pending outbox records", err)
	}
	return collect(rows)
}

// MarkSyncing moves a selectable record to syncing. It returns false when the
// record was no longer selectable, for example because another pass took it.
func (o *Outbox) MarkSyncing(ctx context.Context, id string) (bool, error) {
	res, err := o.store.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'syncing'
		WHERE id = ? AND status IN ('pending', 'failed') AND retry_count < ?`, id, RetryLimit)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrDatabase, "mark outbox record syncing", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrDatabase, "mark outbox record syncing", err)
	}
	return n == 1, nil
}

// Complete marks an in-flight record synced and, when nothing else is
// outstanding for the same entity, sets the entity's synced flag. Both
// writes happen in one transaction.
func (o *Outbox) Complete(ctx context.Context, item *models.SyncQueueItem) error {
	now := o.store.Now()
	err := o.store.WithTx(ctx, func(q db.Querier) error {
		res, err := q.ExecContext(ctx,
			`UPDATE sync_queue SET status = 'synced', last_attempt = ?, error_message = NULL
			WHERE id = ? AND status = 'syncing'`, db.FormatTime(now), item.ID)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, "complete outbox record", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return apperrors.Wrap(apperrors.ErrDatabase, "complete outbox record", err)
		} else if n == 0 {
			return apperrors.Newf(apperrors.ErrNotFound, "outbox record %q is not in flight", item.ID)
		}

		remaining, err := o.outstanding(ctx, q, item.EntityType, item.EntityID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		return db.SetEntitySynced(ctx, q, item.EntityType, item.EntityID, true)
	})
	if err != nil {
		return err
	}

	o.log.Debug("completed", map[string]interface{}{"id": item.ID, "entity_id": item.EntityID})
	return nil
}

// Failed records a failed attempt: retry_count goes up by one and the
// attempt time and message are kept.
func (o *Outbox) Failed(ctx context.Context, id, message string) error {
	res, err := o.store.ExecContext(ctx,
		`UPDATE sync_queue SET status = 'failed', retry_count = retry_count + 1,
			last_attempt = ?, error_message = ?
		WHERE id = ? AND status = 'syncing'`,
		db.FormatTime(o.store.Now()), message, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "fail outbox record", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "fail outbox record", err)
	}
	if n == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "outbox record %q is not in flight", id)
	}
	return nil
}

// Release gives back a claim taken by MarkSyncing without counting an
// attempt. The record returns to the status it had when it was selected.
func (o *Outbox) Release(ctx context.Context, item *models.SyncQueueItem) error {
	prior := item.Status
	if prior != models.SyncStatusFailed {
		prior = models.SyncStatusPending
	}
	_, err := o.store.ExecContext(ctx,
		`UPDATE sync_queue SET status = ? WHERE id = ? AND status = 'syncing'`, string(prior), item.ID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "release outbox record", err)
	}
	return nil
}

// PendingCount counts outstanding work: pending and syncing records plus
// failed records still below RetryLimit.
func (o *Outbox) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := o.store.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue WHERE `+outstandingClause, RetryLimit).Scan(&n)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "count pending outbox records", err)
	}
	return n, nil
}

// Outstanding counts outstanding records for one entity.
func (o *Outbox) Outstanding(ctx context.Context, entity models.EntityType, entityID string) (int, error) {
	return o.outstanding(ctx, o.store, entity, entityID)
}

func (o *Outbox) outstanding(ctx context.Context, q db.Querier, entity models.EntityType, entityID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sync_queue
		WHERE entity_type = ? AND entity_id = ? AND `+outstandingClause,
		string(entity), entityID, RetryLimit).Scan(&n)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "count outstanding outbox records", err)
	}
	return n, nil
}

// GetStats returns per-status counts.
func (o *Outbox) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	var pending, syncing, synced, failed, exhausted sql.NullInt64
	err := o.store.QueryRowContext(ctx, `SELECT
		COUNT(*),
		SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'syncing' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'synced' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'failed' AND retry_count >= ? THEN 1 ELSE 0 END)
		FROM sync_queue`, RetryLimit).Scan(&s.Total, &pending, &syncing, &synced, &failed, &exhausted)
	if err != nil {
		return Stats{}, apperrors.Wrap(apperrors.ErrDatabase, "outbox stats", err)
	}
	s.Pending = int(pending.Int64)
	s.Syncing = int(syncing.Int64)
	s.Synced = int(synced.Int64)
	s.Failed = int(failed.Int64)
	s.Exhausted = int(exhausted.Int64)
	return s, nil
}

// Get returns one record.
func (o *Outbox) Get(ctx context.Context, id string) (*models.SyncQueueItem, error) {
	rows, err := o.store.QueryContext(ctx, `SELECT `+itemColumns+` FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "get outbox record", err)
	}
	items, err := collect(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "outbox record %q not found", id)
	}
	return &items[0], nil
}

// List returns records in creation order, for diagnostics.
func (o *Outbox) List(ctx context.Context, f ListFilter) ([]models.SyncQueueItem, error) {
	query := `SELECT ` + itemColumns + ` FROM sync_queue`
	var args []interface{}
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY created_at ASC, rowid ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := o.store.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list outbox records", err)
	}
	return collect(rows)
}

// RecoverInFlight returns records left in syncing by an interrupted pass to
// pending. Their retry counts are untouched.
func (o *Outbox) RecoverInFlight(ctx context.Context) (int, error) {
	res, err := o.store.ExecContext(ctx, `UPDATE sync_queue SET status = 'pending' WHERE status = 'syncing'`)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "recover in-flight outbox records", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "recover in-flight outbox records", err)
	}
	if n > 0 {
		o.log.Info("recovered in-flight records", map[string]interface{}{"count": n})
	}
	return int(n), nil
}

// Purge deletes synced records whose last attempt is older than cutoff.
func (o *Outbox) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := o.store.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status = 'synced' AND last_attempt < ?`, db.FormatTime(cutoff))
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "purge outbox", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "purge outbox", err)
	}
	return int(n), nil
}

func collect(rows *sql.Rows) ([]models.SyncQueueItem, error) {
	defer rows.Close()

	var items []models.SyncQueueItem
	for rows.Next() {
		var (
			it                        models.SyncQueueItem
			entityType, action, stat  string
			payload, createdAt        string
			lastAttempt, errorMessage sql.NullString
		)
		if err := rows.Scan(&it.ID, &entityType, &it.EntityID, &action, &payload, &stat,
			&it.RetryCount, &createdAt, &lastAttempt, &errorMessage); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "scan outbox record", err)
		}

		var err error
		if it.CreatedAt, err = db.ParseTime(createdAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "parse outbox created_at", err)
		}
		if lastAttempt.Valid {
			t, err := db.ParseTime(lastAttempt.String)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.ErrDatabase, "parse outbox last_attempt", err)
			}
			it.LastAttempt = &t
		}
		it.EntityType = models.EntityType(entityType)
		it.Action = models.Action(action)
		it.Status = models.SyncStatus(stat)
		it.Payload = []byte(payload)
		it.ErrorMessage = errorMessage.String
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "read outbox records", err)
	}
	return items, nil
}
