package models

import "time"

// Placeholder reason stamped on a downtime event until the operator picks one.
const (
	PendingReasonCode  = "PENDING"
	PendingReasonLabel = "Pending Selection"
)

// DowntimeEvent records a period during which a machine was not producing.
// An event is open while EndTime is nil.
type DowntimeEvent struct {
	ID                string     `db:"id" json:"id"`
	UniqueID          string     `db:"unique_id" json:"unique_id"` // idempotency key for remote creates
	TenantID          string     `db:"tenant_id" json:"tenant_id"`
	MachineID         string     `db:"machine_id" json:"machine_id"`
	StartTime         time.Time  `db:"start_time" json:"start_time"`
	EndTime           *time.Time `db:"end_time" json:"end_time,omitempty"`
	ReasonCode        string     `db:"reason_code" json:"reason_code"`
	ReasonLabel       string     `db:"reason_label" json:"reason_label"`
	ParentReasonCode  string     `db:"parent_reason_code" json:"parent_reason_code,omitempty"`
	ParentReasonLabel string     `db:"parent_reason_label" json:"parent_reason_label,omitempty"`
	PhotoRef          string     `db:"photo_path" json:"photo_path,omitempty"`
	Notes             string     `db:"notes" json:"notes,omitempty"`
	Synced            bool       `db:"synced" json:"synced"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for DowntimeEvent.
func (DowntimeEvent) TableName() string {
	return "downtime_events"
}

// IsOpen reports whether the event has not been closed yet.
func (e *DowntimeEvent) IsOpen() bool {
	return e.EndTime == nil
}

// Duration returns the length of the event, measured up to now while it is open.
func (e *DowntimeEvent) Duration(now time.Time) time.Duration {
	end := now
	if e.EndTime != nil {
		end = *e.EndTime
	}
	if end.Before(e.StartTime) {
		return 0
	}
	return end.Sub(e.StartTime)
}

// EndDowntimeInput carries the reason and optional details used to close an event.
type EndDowntimeInput struct {
	ReasonCode        string `json:"reason_code"`
	ReasonLabel       string `json:"reason_label"`
	ParentReasonCode  string `json:"parent_reason_code,omitempty"`
	ParentReasonLabel string `json:"parent_reason_label,omitempty"`
	PhotoRef          string `json:"photo_path,omitempty"`
	Notes             string `json:"notes,omitempty"`
}
