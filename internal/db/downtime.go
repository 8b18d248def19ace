package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

const downtimeColumns = `id, unique_id, tenant_id, machine_id, start_time, end_time,
	reason_code, reason_label, parent_reason_code, parent_reason_label,
	photo_path, notes, synced, created_at, updated_at`

// DowntimeFilter narrows ListDowntime. Zero values match everything.
type DowntimeFilter struct {
	MachineID string
	OpenOnly  bool
	// StartedFrom and StartedBefore bound start_time as [from, before).
	StartedFrom   *time.Time
	StartedBefore *time.Time
}

// InsertDowntime inserts a downtime event row.
func InsertDowntime(ctx context.Context, q Querier, e *models.DowntimeEvent) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO downtime_events (`+downtimeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UniqueID, e.TenantID, e.MachineID, FormatTime(e.StartTime), nullTime(e.EndTime),
		e.ReasonCode, e.ReasonLabel, nullString(e.ParentReasonCode), nullString(e.ParentReasonLabel),
		nullString(e.PhotoRef), nullString(e.Notes), boolInt(e.Synced),
		FormatTime(e.CreatedAt), FormatTime(e.UpdatedAt),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "insert downtime event", err)
	}
	return nil
}

// GetDowntime returns one downtime event.
func GetDowntime(ctx context.Context, q Querier, id string) (*models.DowntimeEvent, error) {
	row := q.QueryRowContext(ctx, `SELECT `+downtimeColumns+` FROM downtime_events WHERE id = ?`, id)
	e, err := scanDowntime(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "downtime event %q not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "get downtime event", err)
	}
	return e, nil
}

// FindOpenDowntime returns the open event for a machine, or nil when the
// machine has none.
func FindOpenDowntime(ctx context.Context, q Querier, machineID string) (*models.DowntimeEvent, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+downtimeColumns+` FROM downtime_events
		WHERE machine_id = ? AND end_time IS NULL
		ORDER BY start_time DESC LIMIT 1`, machineID)
	e, err := scanDowntime(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "find open downtime event", err)
	}
	return e, nil
}

// ListDowntime returns events matching the filter, newest first.
func ListDowntime(ctx context.Context, q Querier, f DowntimeFilter) ([]models.DowntimeEvent, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.MachineID != "" {
		where = append(where, "machine_id = ?")
		args = append(args, f.MachineID)
	}
	if f.OpenOnly {
		where = append(where, "end_time IS NULL")
	}
	if f.StartedFrom != nil {
		where = append(where, "start_time >= ?")
		args = append(args, FormatTime(*f.StartedFrom))
	}
	if f.StartedBefore != nil {
		where = append(where, "start_time < ?")
		args = append(args, FormatTime(*f.StartedBefore))
	}

	query := `SELECT ` + downtimeColumns + ` FROM downtime_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_time DESC, rowid DESC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list downtime events", err)
	}
	defer rows.Close()

	var events []models.DowntimeEvent
	for rows.Next() {
		e, err := scanDowntime(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "scan downtime event", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list downtime events", err)
	}
	return events, nil
}

func scanDowntime(s rowScanner) (*models.DowntimeEvent, error) {
	var (
		e                                models.DowntimeEvent
		startTime, createdAt, updatedAt  sql.NullString
		endTime, parentCode, parentLabel sql.NullString
		photo, notes                     sql.NullString
		synced                           int
	)
	err := s.Scan(&e.ID, &e.UniqueID, &e.TenantID, &e.MachineID, &startTime, &endTime,
		&e.ReasonCode, &e.ReasonLabel, &parentCode, &parentLabel,
		&photo, &notes, &synced, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if e.StartTime, err = ParseTime(startTime.String); err != nil {
		return nil, err
	}
	if e.EndTime, err = parseNullTime(endTime); err != nil {
		return nil, err
	}
	if createdAt.Valid {
		if e.CreatedAt, err = ParseTime(createdAt.String); err != nil {
			return nil, err
		}
	}
	if updatedAt.Valid {
		if e.UpdatedAt, err = ParseTime(updatedAt.String); err != nil {
			return nil, err
		}
	}
	e.ParentReasonCode = parentCode.String
	e.ParentReasonLabel = parentLabel.String
	e.PhotoRef = photo.String
	e.Notes = notes.String
	e.Synced = synced != 0
	return &e, nil
}
