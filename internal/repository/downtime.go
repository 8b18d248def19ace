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

// Downtime records machine stoppages. A machine has at most one open event.
type Downtime struct {
	base
}

// Start opens a downtime event for machineID with the pending reason.
// It fails with DOWNTIME_ALREADY_OPEN if the machine already has one.
func (r *Downtime) Start(ctx context.Context, machineID string) (*models.DowntimeEvent, error) {
	user, err := r.session.Current(ctx)
	if err != nil {
		return nil, err
	}

	var event *models.DowntimeEvent
	err = r.mutate(ctx, func(q db.Querier) (queue.Payload, error) {
		if _, err := db.GetMachine(ctx, q, machineID); err != nil {
			return nil, err
		}
		open, err := db.FindOpenDowntime(ctx, q, machineID)
		if err != nil {
			return nil, err
		}
		if open != nil {
			return nil, apperrors.Newf(apperrors.ErrDowntimeAlreadyOpen,
				"machine %q already has open downtime event %q", machineID, open.ID)
		}

		now := r.store.Now()
		event = &models.DowntimeEvent{
			ID:          uuid.New(),
			UniqueID:    uuid.NewIdempotencyKey(),
			TenantID:    user.TenantID,
			MachineID:   machineID,
			StartTime:   now,
			ReasonCode:  models.PendingReasonCode,
			ReasonLabel: models.PendingReasonLabel,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := db.InsertDowntime(ctx, q, event); err != nil {
			return nil, err
		}
		return queue.DowntimeCreate{Event: *event}, nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("downtime started", map[string]interface{}{
		"event_id": event.ID, "machine_id": machineID,
	})
	r.publish("downtime", event.ID, "create")
	return event, nil
}

// End closes an open event with a reason from the reason tree.
func (r *Downtime) End(ctx context.Context, eventID string, in models.EndDowntimeInput) (*models.DowntimeEvent, error) {
	if _, err := r.session.Current(ctx); err != nil {
		return nil, err
	}
	in, err := resolveReason(in)
	if err != nil {
		return nil, err
	}

	var event *models.DowntimeEvent
	err = r.mutate(ctx, func(q db.Querier) (queue.Payload, error) {
		current, err := db.GetDowntime(ctx, q, eventID)
		if err != nil {
			return nil, err
		}
		if !current.IsOpen() {
			return nil, apperrors.Newf(apperrors.ErrDowntimeAlreadyClosed,
				"downtime event %q is already closed", eventID)
		}

		now := r.store.Now()
		fields := db.Fields{
			"end_time":            now,
			"reason_code":         in.ReasonCode,
			"reason_label":        in.ReasonLabel,
			"parent_reason_code":  in.ParentReasonCode,
			"parent_reason_label": in.ParentReasonLabel,
			"photo_path":          in.PhotoRef,
			"notes":               in.Notes,
			"synced":              false,
			"updated_at":          now,
		}
		if err := db.UpdateFields(ctx, q, "downtime_events", eventID, fields); err != nil {
			return nil, err
		}
		if event, err = db.GetDowntime(ctx, q, eventID); err != nil {
			return nil, err
		}
		return queue.DowntimeUpdate{Event: *event, Changed: fields.Columns()}, nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Info("downtime ended", map[string]interface{}{
		"event_id": eventID, "reason_code": event.ReasonCode,
	})
	r.publish("downtime", eventID, "update")
	return event, nil
}

// AmendNotes replaces the notes of an event, open or closed.
func (r *Downtime) AmendNotes(ctx context.Context, eventID, notes string) (*models.DowntimeEvent, error) {
	if _, err := r.session.Current(ctx); err != nil {
		return nil, err
	}

	var event *models.DowntimeEvent
	err := r.mutate(ctx, func(q db.Querier) (queue.Payload, error) {
		fields := db.Fields{
			"notes":      strings.TrimSpace(notes),
			"synced":     false,
			"updated_at": r.store.Now(),
		}
		if err := db.UpdateFields(ctx, q, "downtime_events", eventID, fields); err != nil {
			return nil, err
		}
		var err error
		if event, err = db.GetDowntime(ctx, q, eventID); err != nil {
			return nil, err
		}
		return queue.DowntimeUpdate{Event: *event, Changed: fields.Columns()}, nil
	})
	if err != nil {
		return nil, err
	}
	r.publish("downtime", eventID, "update")
	return event, nil
}

// Get returns one event.
func (r *Downtime) Get(ctx context.Context, id string) (*models.DowntimeEvent, error) {
	return db.GetDowntime(ctx, r.store, id)
}

// List returns events matching f, newest first.
func (r *Downtime) List(ctx context.Context, f db.DowntimeFilter) ([]models.DowntimeEvent, error) {
	return db.ListDowntime(ctx, r.store, f)
}

// Active returns the open event for machineID, or nil.
func (r *Downtime) Active(ctx context.Context, machineID string) (*models.DowntimeEvent, error) {
	return db.FindOpenDowntime(ctx, r.store, machineID)
}

// ActiveByMachine maps machine ids to their open event.
func (r *Downtime) ActiveByMachine(ctx context.Context) (map[string]models.DowntimeEvent, error) {
	open, err := db.ListDowntime(ctx, r.store, db.DowntimeFilter{OpenOnly: true})
	if err != nil {
		return nil, err
	}
	active := make(map[string]models.DowntimeEvent, len(open))
	for _, e := range open {
		active[e.MachineID] = e
	}
	return active, nil
}

// resolveReason validates the closing reason against the reason tree and
// fills empty labels from it. A reason code of the form "PARENT/CHILD" is
// split into its parent and child.
func resolveReason(in models.EndDowntimeInput) (models.EndDowntimeInput, error) {
	in.ReasonCode = strings.TrimSpace(in.ReasonCode)
	in.ParentReasonCode = strings.TrimSpace(in.ParentReasonCode)
	in.PhotoRef = strings.TrimSpace(in.PhotoRef)
	in.Notes = strings.TrimSpace(in.Notes)

	if in.ReasonCode == "" || in.ReasonCode == models.PendingReasonCode {
		return in, apperrors.New(apperrors.ErrValidation, "a reason code is required to end downtime")
	}

	if strings.Contains(in.ReasonCode, "/") {
		if in.ParentReasonCode != "" {
			return in, apperrors.Newf(apperrors.ErrValidation,
				"reason path %q cannot be combined with a parent code", in.ReasonCode)
		}
		parent, child, ok := models.ResolveReasonPath(in.ReasonCode)
		if !ok {
			return in, apperrors.Newf(apperrors.ErrValidation, "unknown reason %q", in.ReasonCode)
		}
		return fillReason(in, parent, child), nil
	}

	if in.ParentReasonCode != "" {
		parent, child, ok := models.FindReason(strings.ToUpper(in.ParentReasonCode), strings.ToUpper(in.ReasonCode))
		if !ok {
			return in, apperrors.Newf(apperrors.ErrValidation,
				"unknown reason %s/%s", in.ParentReasonCode, in.ReasonCode)
		}
		return fillReason(in, parent, child), nil
	}

	if strings.TrimSpace(in.ReasonLabel) == "" {
		return in, apperrors.Newf(apperrors.ErrValidation, "reason %q needs a label", in.ReasonCode)
	}
	in.ParentReasonLabel = ""
	return in, nil
}

func fillReason(in models.EndDowntimeInput, parent, child models.Reason) models.EndDowntimeInput {
	in.ParentReasonCode = parent.Code
	in.ReasonCode = child.Code
	if strings.TrimSpace(in.ParentReasonLabel) == "" {
		in.ParentReasonLabel = parent.Label
	}
	if strings.TrimSpace(in.ReasonLabel) == "" {
		in.ReasonLabel = child.Label
	}
	return in
}
