package repository

import (
	"context"

	"github.com/kimhsiao/shopfloor/backend/internal/db"
	apperrors "github.com/kimhsiao/shopfloor/backend/internal/errors"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

// Machines reads and updates machines. Machines are not an outbox entity,
// so status changes stay local.
type Machines struct {
	base
}

// List returns every machine ordered by name.
func (r *Machines) List(ctx context.Context) ([]models.Machine, error) {
	return db.ListMachines(ctx, r.store)
}

// Get returns one machine.
func (r *Machines) Get(ctx context.Context, id string) (*models.Machine, error) {
	return db.GetMachine(ctx, r.store, id)
}

// UpdateStatus sets a machine's status and stamps last_updated.
func (r *Machines) UpdateStatus(ctx context.Context, id string, status models.MachineStatus) (*models.Machine, error) {
	if !status.Valid() {
		return nil, apperrors.Newf(apperrors.ErrValidation, "invalid machine status %q", status)
	}
	err := db.UpdateFields(ctx, r.store, "machines", id, db.Fields{
		"status":       string(status),
		"last_updated": r.store.Now(),
	})
	if err != nil {
		return nil, err
	}
	r.publish("machine", id, "update")
	return r.Get(ctx, id)
}
