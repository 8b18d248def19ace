package models

import "time"

// AlertSeverity ranks how urgent an alert is.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Severities lists every severity in ascending order.
var Severities = []AlertSeverity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Valid reports whether s is a known severity.
func (s AlertSeverity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusCreated      AlertStatus = "created"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusCleared      AlertStatus = "cleared"
)

// Valid reports whether s is a known alert status.
func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusCreated, AlertStatusAcknowledged, AlertStatusCleared:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Alerts only move forward: created -> acknowledged -> cleared, and a created
// alert may be cleared directly.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	switch s {
	case AlertStatusCreated:
		return next == AlertStatusAcknowledged || next == AlertStatusCleared
	case AlertStatusAcknowledged:
		return next == AlertStatusCleared
	}
	return false
}

// Alert is a machine condition raised to operators.
type Alert struct {
	ID             string        `db:"id" json:"id"`
	TenantID       string        `db:"tenant_id" json:"tenant_id"`
	MachineID      string        `db:"machine_id" json:"machine_id"`
	MachineName    string        `db:"machine_name" json:"machine_name"`
	Message        string        `db:"message" json:"message"`
	Severity       AlertSeverity `db:"severity" json:"severity"`
	Status         AlertStatus   `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	AcknowledgedBy string        `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time    `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	ClearedBy      string        `db:"cleared_by" json:"cleared_by,omitempty"`
	ClearedAt      *time.Time    `db:"cleared_at" json:"cleared_at,omitempty"`
	Synced         bool          `db:"synced" json:"synced"`
}

// TableName returns the table name for Alert.
func (Alert) TableName() string {
	return "alerts"
}

// IsOpen reports whether the alert has not been cleared.
func (a *Alert) IsOpen() bool {
	return a.Status != AlertStatusCleared
}
