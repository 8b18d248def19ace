package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

const alertColumns = `id, tenant_id, machine_id, machine_name, message, severity, status,
	created_at, acknowledged_by, acknowledged_at, cleared_by, cleared_at, synced`

// AlertFilter narrows ListAlerts. Zero values match everything.
type AlertFilter struct {
	Status    models.AlertStatus
	MachineID string
	OpenOnly  bool
}

// InsertAlert inserts an alert row.
func InsertAlert(ctx context.Context, q Querier, a *models.Alert) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO alerts (`+alertColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TenantID, a.MachineID, a.MachineName, a.Message, string(a.Severity), string(a.Status),
		FormatTime(a.CreatedAt), nullString(a.AcknowledgedBy), nullTime(a.AcknowledgedAt),
		nullString(a.ClearedBy), nullTime(a.ClearedAt), boolInt(a.Synced),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "insert alert", err)
	}
	return nil
}

// GetAlert returns one alert.
func GetAlert(ctx context.Context, q Querier, id string) (*models.Alert, error) {
	row := q.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "alert %q not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "get alert", err)
	}
	return a, nil
}

// ListAlerts returns alerts matching the filter, newest first.
func ListAlerts(ctx context.Context, q Querier, f AlertFilter) ([]models.Alert, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.MachineID != "" {
		where = append(where, "machine_id = ?")
		args = append(args, f.MachineID)
	}
	if f.OpenOnly {
		where = append(where, "status != 'cleared'")
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list alerts", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "scan alert", err)
		}
		alerts = append(alerts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list alerts", err)
	}
	return alerts, nil
}

func scanAlert(s rowScanner) (*models.Alert, error) {
	var (
		a                    models.Alert
		severity, status     string
		tenantID, createdAt  sql.NullString
		ackBy, ackAt         sql.NullString
		clearedBy, clearedAt sql.NullString
		synced               int
	)
	err := s.Scan(&a.ID, &tenantID, &a.MachineID, &a.MachineName, &a.Message, &severity, &status,
		&createdAt, &ackBy, &ackAt, &clearedBy, &clearedAt, &synced)
	if err != nil {
		return nil, err
	}
	if createdAt.Valid {
		if a.CreatedAt, err = ParseTime(createdAt.String); err != nil {
			return nil, err
		}
	}
	if a.AcknowledgedAt, err = parseNullTime(ackAt); err != nil {
		return nil, err
	}
	if a.ClearedAt, err = parseNullTime(clearedAt); err != nil {
		return nil, err
	}
	a.TenantID = tenantID.String
	a.Severity = models.AlertSeverity(severity)
	a.Status = models.AlertStatus(status)
	a.AcknowledgedBy = ackBy.String
	a.ClearedBy = clearedBy.String
	a.Synced = synced != 0
	return &a, nil
}
