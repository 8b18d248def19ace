package db

import (
	"context"

	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

// EntityTable returns the table holding entities of type t.
func EntityTable(t models.EntityType) (string, error) {
	switch t {
	case models.EntityDowntime:
		return models.DowntimeEvent{}.TableName(), nil
	case models.EntityMaintenance:
		return models.MaintenanceItem{}.TableName(), nil
	case models.EntityAlert:
		return models.Alert{}.TableName(), nil
	}
	return "", apperrors.Newf(apperrors.ErrValidation, "unknown entity type %q", t)
}

// SetEntitySynced sets the synced flag on one entity row. A row that no
// longer exists is not an error; the outbox does not own its entities.
func SetEntitySynced(ctx context.Context, q Querier, t models.EntityType, id string, synced bool) error {
	table, err := EntityTable(t)
	if err != nil {
		return err
	}
	if _, err := q.ExecContext(ctx, "UPDATE "+table+" SET synced = ? WHERE id = ?", boolInt(synced), id); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "mark "+table+" synced", err)
	}
	return nil
}
