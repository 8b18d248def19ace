package models

import "time"

// MaintenanceStatus is the display status of a maintenance item.
type MaintenanceStatus string

const (
	MaintenanceStatusDue     MaintenanceStatus = "due"
	MaintenanceStatusOverdue MaintenanceStatus = "overdue"
	MaintenanceStatusDone    MaintenanceStatus = "done"
)

// Valid reports whether s is a known maintenance status.
func (s MaintenanceStatus) Valid() bool {
	switch s {
	case MaintenanceStatusDue, MaintenanceStatusOverdue, MaintenanceStatusDone:
		return true
	}
	return false
}

// MaintenanceItem is a scheduled maintenance task for a machine.
//
// Only "done" is persisted as ground truth. Status is recomputed with
// DeriveStatus every time items are loaded.
type MaintenanceItem struct {
	ID          string            `db:"id" json:"id"`
	MachineID   string            `db:"machine_id" json:"machine_id"`
	Title       string            `db:"title" json:"title"`
	Description string            `db:"description" json:"description"`
	DueDate     time.Time         `db:"due_date" json:"due_date"`
	Status      MaintenanceStatus `db:"status" json:"status"`
	CompletedAt *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	CompletedBy string            `db:"completed_by" json:"completed_by,omitempty"`
	Notes       string            `db:"notes" json:"notes,omitempty"`
	Synced      bool              `db:"synced" json:"synced"`
}

// TableName returns the table name for MaintenanceItem.
func (MaintenanceItem) TableName() string {
	return "maintenance_items"
}

// IsDone reports whether the stored completion state marks the item done.
func (m *MaintenanceItem) IsDone() bool {
	return m.Status == MaintenanceStatusDone || m.CompletedAt != nil
}

// DeriveStatus computes the display status from the stored completion state,
// the due date and the current time. An item is overdue when its due date is
// strictly before now and it has not been completed.
func DeriveStatus(done bool, dueDate, now time.Time) MaintenanceStatus {
	if done {
		return MaintenanceStatusDone
	}
	if dueDate.Before(now) {
		return MaintenanceStatusOverdue
	}
	return MaintenanceStatusDue
}

// RecomputeStatuses applies DeriveStatus to every item in place.
// Calling it repeatedly with the same now yields the same statuses.
func RecomputeStatuses(items []MaintenanceItem, now time.Time) {
	for i := range items {
		items[i].Status = DeriveStatus(items[i].IsDone(), items[i].DueDate, now)
	}
}
