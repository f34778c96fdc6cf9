package models

import (
	"encoding/json"
	"time"
)

// EntityType names the entity kind a SyncEvent refers to.
type EntityType string

const (
	EntityUser       EntityType = "user"
	EntityChat       EntityType = "chat"
	EntityMessage    EntityType = "message"
	EntityDevice     EntityType = "device"
	EntitySyncConfig EntityType = "sync_config"
)

// SyncOperation is the mutation kind recorded by a SyncEvent.
type SyncOperation string

const (
	OperationCreate SyncOperation = "create"
	OperationUpdate SyncOperation = "update"
	OperationDelete SyncOperation = "delete"
)

/// SyncEvent is one append-only change-log record: what changed, on which
// device, when, and whether the remote side has acknowledged it. Rows are
// never updated except to flip Synced from false to true.
type SyncEvent struct {
	ID         UUID            `db:"id" json:"id"`
	EntityType EntityType      `db:"entity_type" json:"entity_type"`
	EntityID   UUID            `db:"entity_id" json:"entity_id"`
	Operation  SyncOperation   `db:"operation" json:"operation"`
	Snapshot   json.RawMessage `db:"snapshot" json:"snapshot"`
	Timestamp  int64           `db:"timestamp" json:"timestamp"`
	UserID     UUID            `db:"user_id" json:"user_id"`
	DeviceID   string          `db:"device_id" json:"device_id"`
	Synced     bool            `db:"synced" json:"synced"`
}

// TableName returns the table name for SyncEvent.
func (SyncEvent) TableName() string {
	return "sync_events"
}

// Time returns the Timestamp as time.Time.
func (e *SyncEvent) Time() time.Time {
	return time.Unix(e.Timestamp, 0)
}
