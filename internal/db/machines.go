package db

import (
	"context"
	"database/sql"
	stderrors "errors"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

const machineColumns = `id, name, type, status, last_updated`

// InsertMachine inserts a machine row.
func InsertMachine(ctx context.Context, q Querier, m *models.Machine) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO machines (`+machineColumns+`) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Name, string(m.Type), string(m.Status), FormatTime(m.LastUpdated),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "insert machine", err)
	}
	return nil
}

// GetMachine returns one machine.
func GetMachine(ctx context.Context, q Querier, id string) (*models.Machine, error) {
	row := q.QueryRowContext(ctx, `SELECT `+machineColumns+` FROM machines WHERE id = ?`, id)
	m, err := scanMachine(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "machine %q not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "get machine", err)
	}
	return m, nil
}

// ListMachines returns every machine ordered by name.
func ListMachines(ctx context.Context, q Querier) ([]models.Machine, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+machineColumns+` FROM machines ORDER BY name`)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list machines", err)
	}
	defer rows.Close()

	var machines []models.Machine
	for rows.Next() {
		m, err := scanMachine(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "scan machine", err)
		}
		machines = append(machines, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "list machines", err)
	}
	return machines, nil
}

// CountMachines returns the number of machine rows.
func CountMachines(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM machines`).Scan(&n); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "count machines", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMachine(s rowScanner) (*models.Machine, error) {
	var (
		m           models.Machine
		typ, status string
		lastUpdated sql.NullString
	)
	if err := s.Scan(&m.ID, &m.Name, &typ, &status, &lastUpdated); err != nil {
		return nil, err
	}
	m.Type = models.MachineType(typ)
	m.Status = models.MachineStatus(status)
	if lastUpdated.Valid {
		t, err := ParseTime(lastUpdated.String)
		if err != nil {
			return nil, err
		}
		m.LastUpdated = t
	}
	return &m, nil
}
