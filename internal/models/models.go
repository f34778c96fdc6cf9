// Package models provides data model definitions for ChatVault Core.
package models

import (
	"database/sql/driver"
	"fmt"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = ""
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// RecordStatus is the lifecycle status of a soft-deletable record.
// Deleted rows stay in place as tombstones so they can still participate
// in conflict resolution.
type RecordStatus string

const (
	StatusActive  RecordStatus = "active"
	StatusDeleted RecordStatus = "deleted"
)

// Value implements driver.Valuer for RecordStatus.
func (s RecordStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Scan implements sql.Scanner for RecordStatus.
func (s *RecordStatus) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = StatusActive
	case string:
		*s = RecordStatus(v)
	case []byte:
		*s = RecordStatus(v)
	default:
		return fmt.Errorf("cannot scan %T into RecordStatus", value)
	}
	return nil
}

// Deleted reports whether the status marks a tombstone.
func (s RecordStatus) Deleted() bool {
	return s == StatusDeleted
}
