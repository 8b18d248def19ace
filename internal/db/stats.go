package db

import (
	"context"
	"database/sql"
	"time"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
)

// DowntimeStats counts events that started in [from, before) and sums their
// duration in minutes, measuring open events up to now.
func DowntimeStats(ctx context.Context, q Querier, from, before, now time.Time) (count int, minutes int, err error) {
	events, err := ListDowntime(ctx, q, DowntimeFilter{StartedFrom: &from, StartedBefore: &before})
	if err != nil {
		return 0, 0, err
	}
	var total time.Duration
	for i := range events {
		total += events[i].Duration(now)
	}
	return len(events), int(total.Round(time.Minute) / time.Minute), nil
}

// AlertStats returns total, open (created or acknowledged) and cleared counts.
func AlertStats(ctx context.Context, q Querier) (total, open, cleared int, err error) {
	var o, c sql.NullInt64
	err = q.QueryRowContext(ctx, `SELECT
		COUNT(*),
		SUM(CASE WHEN status IN ('created', 'acknowledged') THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'cleared' THEN 1 ELSE 0 END)
		FROM alerts`).Scan(&total, &o, &c)
	if err != nil {
		return 0, 0, 0, apperrors.Wrap(apperrors.ErrDatabase, "alert stats", err)
	}
	return total, int(o.Int64), int(c.Int64), nil
}

// MachineStats returns how many machines run and how many are idle or off.
func MachineStats(ctx context.Context, q Querier) (running, down int, err error) {
	var r, d sql.NullInt64
	err = q.QueryRowContext(ctx, `SELECT
		SUM(CASE WHEN status = 'RUN' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status IN ('IDLE', 'OFF') THEN 1 ELSE 0 END)
		FROM machines`).Scan(&r, &d)
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrDatabase, "machine stats", err)
	}
	return int(r.Int64), int(d.Int64), nil
}

// MaintenanceStats returns total and completed maintenance items.
func MaintenanceStats(ctx context.Context, q Querier) (total, completed int, err error) {
	var c sql.NullInt64
	err = q.QueryRowContext(ctx, `SELECT
		COUNT(*),
		SUM(CASE WHEN status = 'done' THEN 1 ELSE 0 END)
		FROM maintenance_items`).Scan(&total, &c)
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrDatabase, "maintenance stats", err)
	}
	return total, int(c.Int64), nil
}
