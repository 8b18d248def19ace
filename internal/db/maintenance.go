package db

import (
	"context"
	"database/sql"
	stderrors "errors"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

const maintenanceColumns = `id, machine_id, title, description, due_date, status,
	completed_at, completed_by, notes, synced`

// InsertMaintenance inserts a maintenance item row. Only "due" and "done"
// are ever written; overdue is derived on load.
func InsertMaintenance(ctx context.Context, q Querier, m *models.MaintenanceItem) error {
	status := models.MaintenanceStatusDue
	if m.IsDone() {
		status = models.MaintenanceStatusDone
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO maintenance_items (`+maintenanceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.MachineID, m.Title, nullString(m.Description), FormatTime(m.DueDate), string(status),
		nullTime(m.CompletedAt), nullString(m.CompletedBy), nullString(m.Notes), boolInt(m.Synced),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "insert maintenance item", err)
	}
	return nil
}

// GetMaintenance returns one maintenance item with its stored status.
func GetMaintenance(ctx context.Context, q Querier, id string) (*models.MaintenanceItem, error) {
	row := q.QueryRowContext(ctx, `SELECT `+maintenanceColumns+` FROM maintenance_items WHERE id = ?`, id)
	m, err := scanMaintenance(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "maintenance item %q not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "get maintenance item", err)
	}
	return m, nil
}

// ListMaintenance returns items ordered by due date, optionally for one machine.
func ListMaintenance(ctx context.Context, q Querier, machineID string) ([]models.MaintenanceItem, error) {
	query := `SELECT ` + maintenanceColumns + ` FROM maintenance_items`
	var args []interface{}
	if machineID != "" {
		query += ` WHERE machine_id = ?`
		args = append(args, machineID)
	}
	query += ` ORDER BY due_date ASC, id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list maintenance items", err)
	}
	defer rows.Close()

	var items []models.MaintenanceItem
	for rows.Next() {
		m, err := scanMaintenance(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "scan maintenance item", err)
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list maintenance items", err)
	}
	return items, nil
}

func scanMaintenance(s rowScanner) (*models.MaintenanceItem, error) {
	var (
		m                        models.MaintenanceItem
		status, dueDate          string
		description, completedAt sql.NullString
		completedBy, notes       sql.NullString
		synced                   int
	)
	err := s.Scan(&m.ID, &m.MachineID, &m.Title, &description, &dueDate, &status,
		&completedAt, &completedBy, &notes, &synced)
	if err != nil {
		return nil, err
	}
	if m.DueDate, err = ParseTime(dueDate); err != nil {
		return nil, err
	}
	if m.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, err
	}
	m.Status = models.MaintenanceStatus(status)
	m.Description = description.String
	m.CompletedBy = completedBy.String
	m.Notes = notes.String
	m.Synced = synced != 0
	return &m, nil
}
