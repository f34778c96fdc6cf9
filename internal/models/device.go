package models

// Device is one installation of the app. The fingerprint is stable for
// the lifetime of the installation and is the sole attribution key for
// SyncEvent.DeviceID. One row is expected per fingerprint; re-registering
// an existing fingerprint updates ownership rather than duplicating.
type Device struct {
	ID          UUID   `db:"id" json:"id"`
	UserID      UUID   `db:"user_id" json:"user_id"`
	Fingerprint string `db:"fingerprint" json:"fingerprint"`
	LastSyncAt  *int64 `db:"last_sync_at" json:"last_sync_at,omitempty"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for Device.
func (Device) TableName() string {
	return "devices"
}
