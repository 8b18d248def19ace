// Package kpi aggregates the supervisor dashboard figures from the store.
package kpi

import (
	"context"
	"math"
	"time"

	"github.com/kimhsiao/shopfloor/backend/internal/db"
	"github.com/kimhsiao/shopfloor/backend/internal/logging"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

// Service computes KPIs.
type Service struct {
	store *db.DB
	log   *logging.Logger
}

// New creates a Service.
func New(store *db.DB, log *logging.Logger) *Service {
	return &Service{store: store, log: logging.OrNop(log).Named("kpi")}
}

// Today returns the UTC day containing t as [start, end).
func Today(t time.Time) (start, end time.Time) {
	start = t.UTC().Truncate(24 * time.Hour)
	return start, start.Add(24 * time.Hour)
}

// Compute reads every figure in one read transaction so the numbers agree
// with each other. Downtime covers events started today (UTC), with open
// events measured up to now.
func (s *Service) Compute(ctx context.Context) (*models.KPIData, error) {
	now := s.store.Now()
	from, before := Today(now)

	var k models.KPIData
	err := s.store.WithTx(ctx, func(q db.Querier) error {
		var err error
		if k.DowntimeEventsToday, k.DowntimeMinutesToday, err = db.DowntimeStats(ctx, q, from, before, now); err != nil {
			return err
		}
		if k.AlertsTotal, k.AlertsOpen, k.AlertsCleared, err = db.AlertStats(ctx, q); err != nil {
			return err
		}
		if k.MachinesRunning, k.MachinesDown, err = db.MachineStats(ctx, q); err != nil {
			return err
		}
		k.MaintenanceTotal, k.MaintenanceCompleted, err = db.MaintenanceStats(ctx, q)
		return err
	})
	if err != nil {
		s.log.Error("compute kpis failed", err)
		return nil, err
	}

	k.MaintenancePercentage = Percent(k.MaintenanceCompleted, k.MaintenanceTotal)
	return &k, nil
}

// Percent returns part/total as a whole percentage, or 0 when total is 0.
func Percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(part) / float64(total) * 100)
}
