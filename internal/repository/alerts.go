package repository

import (
	"context"
	"strings"

	"github.com/kimhsiao/shopfloor/backend/internal/db"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/queue"
	"github.com/kimhsiao/shopfloor/backend/internal/uuid"
)

// NewAlert is the input to Alerts.Create.
type NewAlert struct {
	MachineID string               `json:"machine_id"`
	Message   string               `json:"message"`
	Severity  models.AlertSeverity `json:"severity"`
}

// Alerts raises alerts and moves them through
// created -> acknowledged -> cleared.
type Alerts struct {
	base
	tenantID string
}

// Create raises an alert. Alerts may be system-initiated, so no session is
// required; the signed-in user's tenant is used when there is one.
func (r *Alerts) Create(ctx context.Context, in NewAlert) (*models.Alert, error) {
	if !in.Severity.Valid() {
		return nil, apperrors.Newf(apperrors.ErrValidation, "invalid alert severity %q", in.Severity)
	}
	in.Message = strings.TrimSpace(in.Message)
	if in.Message == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "alert message is required")
	}

	tenantID := r.tenantID
	user, err := r.session.Current(ctx)
	switch {
	case err == nil:
		tenantID = user.TenantID
	case !apperrors.Is(err, apperrors.ErrUnauthenticated):
		return nil, err
	}

	var alert *models.Alert
	err = r.mutate(ctx, func(q db.Querier) (queue.Payload, error) {
		machine, err := db.GetMachine(ctx, q, in.MachineID)
		if err != nil {
			return nil, err
		}
		alert = &models.Alert{
			ID:          uuid.New(),
			TenantID:    tenantID,
			MachineID:   machine.ID,
			MachineName: machine.Name,
			Message:     in.Message,
			Severity:    in.Severity,
			Status:      models.AlertStatusCreated,
			CreatedAt:   r.store.Now(),
		}
		if err := db.InsertAlert(ctx, q, alert); err != nil {
			return nil, err
		}
		return queue.AlertCreate{Alert: *alert}, nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("alert created", map[string]interface{}{
		"alert_id": alert.ID, "machine_id": alert.MachineID, "severity": string(alert.Severity),
	})
	r.publish("alert", alert.ID, "create")
	return alert, nil
}

// Acknowledge marks a created alert as seen by the signed-in user.
func (r *Alerts) Acknowledge(ctx context.Context, id string) (*models.Alert, error) {
	return r.transition(ctx, id, models.AlertStatusAcknowledged, "acknowledged_by", "acknowledged_at")
}

// Clear closes an alert on behalf of the signed-in user.
func (r *Alerts) Clear(ctx context.Context, id string) (*models.Alert, error) {
	return r.transition(ctx, id, models.AlertStatusCleared, "cleared_by", "cleared_at")
}

func (r *Alerts) transition(ctx context.Context, id string, next models.AlertStatus, byColumn, atColumn string) (*models.Alert, error) {
	user, err := r.session.Current(ctx)
	if err != nil {
		return nil, err
	}

	var alert *models.Alert
	err = r.mutate(ctx, func(q db.Querier) (queue.Payload, error) {
		current, err := db.GetAlert(ctx, q, id)
		if err != nil {
			return nil, err
		}
		if !current.Status.CanTransitionTo(next) {
			return nil, apperrors.Newf(apperrors.ErrInvalidTransition,
				"alert %q cannot move from %s to %s", id, current.Status, next)
		}
		fields := db.Fields{
			"status": string(next),
			byColumn: user.Email,
			atColumn: r.store.Now(),
			"synced": false,
		}
		if err := db.UpdateFields(ctx, q, "alerts", id, fields); err != nil {
			return nil, err
		}
		if alert, err = db.GetAlert(ctx, q, id); err != nil {
			return nil, err
		}
		return queue.AlertUpdate{Alert: *alert, Changed: fields.Columns()}, nil
	})
	if err != nil {
		return nil, err
	}
	r.publish("alert", id, "update")
	return alert, nil
}

// Get returns one alert.
func (r *Alerts) Get(ctx context.Context, id string) (*models.Alert, error) {
	return db.GetAlert(ctx, r.store, id)
}

// List returns alerts matching f, newest first.
func (r *Alerts) List(ctx context.Context, f db.AlertFilter) ([]models.Alert, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperrors.Newf(apperrors.ErrValidation, "invalid alert status %q", f.Status)
	}
	return db.ListAlerts(ctx, r.store, f)
}
