package models

import "time"

// EntityType identifies which syncable entity an outbox record refers to.
type EntityType string

const (
	EntityDowntime    EntityType = "downtime"
	EntityMaintenance EntityType = "maintenance"
	EntityAlert       EntityType = "alert"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityDowntime, EntityMaintenance, EntityAlert:
		return true
	}
	return false
}

// Action is the kind of mutation recorded in the outbox.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// SyncStatus is the state of one outbox record.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// Valid reports whether s is a known outbox status.
func (s SyncStatus) Valid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSyncing, SyncStatusSynced, SyncStatusFailed:
		return true
	}
	return false
}

// SyncQueueItem is one outbox record: a mutation waiting for remote confirmation.
type SyncQueueItem struct {
	ID           string     `db:"id" json:"id"`
	EntityType   EntityType `db:"entity_type" json:"entity_type"`
	EntityID     string     `db:"entity_id" json:"entity_id"`
	Action       Action     `db:"action" json:"action"`
	Payload      []byte     `db:"payload" json:"payload"`
	Status       SyncStatus `db:"status" json:"status"`
	RetryCount   int        `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	LastAttempt  *time.Time `db:"last_attempt" json:"last_attempt,omitempty"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
}

// TableName returns the table name for SyncQueueItem.
func (SyncQueueItem) TableName() string {
	return "sync_queue"
}
