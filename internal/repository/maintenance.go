package repository

import (
	"context"
	"strings"

	"github.com/kimhsiao/shopfloor/backend/internal/db"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
	"github.com/kimhsiao/shopfloor/backend/internal/sync/queue"
)

// Maintenance reads and completes maintenance items. Loaded items always
// carry a status derived for the store's current time.
type Maintenance struct {
	base
}

// List returns the items of machineID, or of every machine when it is empty,
// ordered by due date.
func (r *Maintenance) List(ctx context.Context, machineID string) ([]models.MaintenanceItem, error) {
	items, err := db.ListMaintenance(ctx, r.store, machineID)
	if err != nil {
		return nil, err
	}
	models.RecomputeStatuses(items, r.store.Now())
	return items, nil
}

// Get returns one item.
func (r *Maintenance) Get(ctx context.Context, id string) (*models.MaintenanceItem, error) {
	item, err := db.GetMaintenance(ctx, r.store, id)
	if err != nil {
		return nil, err
	}
	item.Status = models.DeriveStatus(item.IsDone(), item.DueDate, r.store.Now())
	return item, nil
}

// MarkAsDone completes an item on behalf of the signed-in user.
// Completing an item twice fails with INVALID_TRANSITION.
func (r *Maintenance) MarkAsDone(ctx context.Context, id, notes string) (*models.MaintenanceItem, error) {
	user, err := r.session.Current(ctx)
	if err != nil {
		return nil, err
	}

	item, err := r.update(ctx, id, func(current *models.MaintenanceItem) (db.Fields, error) {
		if current.IsDone() {
			return nil, apperrors.Newf(apperrors.ErrInvalidTransition, "maintenance item %q is already done", id)
		}
		fields := db.Fields{
			"status":       string(models.MaintenanceStatusDone),
			"completed_at": r.store.Now(),
			"completed_by": user.Email,
		}
		if notes = strings.TrimSpace(notes); notes != "" {
			fields["notes"] = notes
		}
		return fields, nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("maintenance completed", map[string]interface{}{
		"item_id": id, "completed_by": user.Email,
	})
	return item, nil
}

// AddNote replaces the notes of an item.
func (r *Maintenance) AddNote(ctx context.Context, id, notes string) (*models.MaintenanceItem, error) {
	if _, err := r.session.Current(ctx); err != nil {
		return nil, err
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "notes must not be empty")
	}
	return r.update(ctx, id, func(*models.MaintenanceItem) (db.Fields, error) {
		return db.Fields{"notes": notes}, nil
	})
}

// update loads the item, applies the fields returned by change and enqueues
// the resulting snapshot.
func (r *Maintenance) update(ctx context.Context, id string, change func(*models.MaintenanceItem) (db.Fields, error)) (*models.MaintenanceItem, error) {
	var item *models.MaintenanceItem
	err := r.mutate(ctx, func(q db.Querier) (queue.Payload, error) {
		current, err := db.GetMaintenance(ctx, q, id)
		if err != nil {
			return nil, err
		}
		fields, err := change(current)
		if err != nil {
			return nil, err
		}
		fields["synced"] = false
		if err := db.UpdateFields(ctx, q, "maintenance_items", id, fields); err != nil {
			return nil, err
		}
		if item, err = db.GetMaintenance(ctx, q, id); err != nil {
			return nil, err
		}
		item.Status = models.DeriveStatus(item.IsDone(), item.DueDate, r.store.Now())
		return queue.MaintenanceUpdate{Item: *item, Changed: fields.Columns()}, nil
	})
	if err != nil {
		return nil, err
	}
	r.publish("maintenance", id, "update")
	return item, nil
}
