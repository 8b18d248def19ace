package repository

import (
	"context"

	"github.com/kimhsiao/shopfloor/backend/internal/db"
	"github.com/kimhsiao/shopfloor/backend/internal/models"
)

// MachineRepository defines machine reads and status updates.
type MachineRepository interface {
	// List returns every machine.
	List(ctx context.Context) ([]models.Machine, error)

	// Get retrieves a machine by ID.
	Get(ctx context.Context, id string) (*models.Machine, error)

	// UpdateStatus sets a machine's run status.
	UpdateStatus(ctx context.Context, id string, status models.MachineStatus) (*models.Machine, error)
}

// DowntimeRepository defines downtime event operations.
type DowntimeRepository interface {
	// Start opens a downtime event for a machine.
	Start(ctx context.Context, machineID string) (*models.DowntimeEvent, error)

	// End closes an open downtime event with a reason.
	End(ctx context.Context, eventID string, in models.EndDowntimeInput) (*models.DowntimeEvent, error)

	AmendNotes(ctx context.Context, eventID, notes string) (*models.DowntimeEvent, error)
	Get(ctx context.Context, id string) (*models.DowntimeEvent, error)
	List(ctx context.Context, f db.DowntimeFilter) ([]models.DowntimeEvent, error)
	ActiveByMachine(ctx context.Context) (map[string]models.DowntimeEvent, error)
}

// MaintenanceRepository defines maintenance item operations.
type MaintenanceRepository interface {
	List(ctx context.Context, machineID string) ([]models.MaintenanceItem, error)
	Get(ctx context.Context, id string) (*models.MaintenanceItem, error)

	// MarkAsDone completes an item for the signed-in user.
	MarkAsDone(ctx context.Context, id, notes string) (*models.MaintenanceItem, error)

	AddNote(ctx context.Context, id, notes string) (*models.MaintenanceItem, error)
}

// AlertCreator is the subset of alert operations used by system producers.
type AlertCreator interface {
	Create(ctx context.Context, in NewAlert) (*models.Alert, error)
}

// AlertRepository defines alert operations.
type AlertRepository interface {
	AlertCreator

	// Acknowledge and Clear only move forward through the alert lifecycle.
	Acknowledge(ctx context.Context, id string) (*models.Alert, error)
	Clear(ctx context.Context, id string) (*models.Alert, error)

	Get(ctx context.Context, id string) (*models.Alert, error)
	List(ctx context.Context, f db.AlertFilter) ([]models.Alert, error)
}

// SessionRepository defines the local user session.
type SessionRepository interface {
	Login(ctx context.Context, email string, role models.Role, token string) (*models.User, error)
	Current(ctx context.Context) (*models.User, error)
	Logout(ctx context.Context) error
}

// Ensure the repositories implement the interfaces at compile time.
var (
	_ MachineRepository     = (*Machines)(nil)
	_ DowntimeRepository    = (*Downtime)(nil)
	_ MaintenanceRepository = (*Maintenance)(nil)
	_ AlertRepository       = (*Alerts)(nil)
	_ SessionRepository     = (*Users)(nil)
)
