package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
)

// Fields is a set of column assignments for a partial update.
type Fields map[string]interface{}

// Columns returns the column names in sorted order.
func (f Fields) Columns() []string {
	columns := make([]string, 0, len(f))
	for col := range f {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

// updatableColumns lists the columns a partial update may touch per table.
// Identity, foreign keys and creation stamps are never updatable.
var updatableColumns = map[string]map[string]bool{
	"machines": {
		"status": true, "last_updated": true,
	},
	"downtime_events": {
		"end_time": true, "reason_code": true, "reason_label": true,
		"parent_reason_code": true, "parent_reason_label": true,
		"photo_path": true, "notes": true, "synced": true, "updated_at": true,
	},
	"maintenance_items": {
		"status": true, "completed_at": true, "completed_by": true,
		"notes": true, "synced": true,
	},
	"alerts": {
		"status": true, "acknowledged_by": true, "acknowledged_at": true,
		"cleared_by": true, "cleared_at": true, "synced": true,
	},
}

// UpdateFields applies a partial update to the row with the given id.
// Unknown tables or columns are rejected with VALIDATION_ERROR before any
// SQL runs, and a missing row is reported as NOT_FOUND.
func UpdateFields(ctx context.Context, q Querier, table, id string, fields Fields) error {
	allowed, ok := updatableColumns[table]
	if !ok {
		return apperrors.Newf(apperrors.ErrValidation, "unknown table %q", table)
	}
	if len(fields) == 0 {
		return apperrors.New(apperrors.ErrValidation, "no fields to update")
	}

	columns := fields.Columns()
	for _, col := range columns {
		if !allowed[col] {
			return apperrors.Newf(apperrors.ErrValidation, "field %q is not updatable on %s", col, table)
		}
	}

	sets := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns)+1)
	for _, col := range columns {
		sets = append(sets, col+" = ?")
		args = append(args, dbValue(fields[col]))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", table, strings.Join(sets, ", "))
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "update "+table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "update "+table, err)
	}
	if n == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "%s row %q not found", table, id)
	}
	return nil
}

// dbValue converts Go values into their stored representation.
func dbValue(v interface{}) interface{} {
	switch x := v.(type) {
	case time.Time:
		return FormatTime(x)
	case *time.Time:
		return nullTime(x)
	case bool:
		return boolInt(x)
	default:
		return v
	}
}
