package models

// SyncMode selects where a user's data lives.
type SyncMode string

const (
	SyncModeLocalOnly SyncMode = "local-only"
	SyncModeCloudOnly SyncMode = "cloud-only"
	SyncModeHybrid    SyncMode = "hybrid"
)

// SyncConfig is the per-user synchronization policy. At most one row per
// user; upserted on write.
type SyncConfig struct {
	UserID       UUID     `db:"user_id" json:"user_id"`
	Mode         SyncMode `db:"mode" json:"mode"`
	AutoSync     bool     `db:"auto_sync" json:"auto_sync"`
	SyncInterval int64    `db:"sync_interval" json:"sync_interval"` // seconds
	UpdatedAt    int64    `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for SyncConfig.
func (SyncConfig) TableName() string {
	return "sync_config"
}

// DefaultSyncConfig returns the policy applied before a user configures sync.
func DefaultSyncConfig(userID UUID) *SyncConfig {
	return &SyncConfig{
		UserID:       userID,
		Mode:         SyncModeHybrid,
		AutoSync:     true,
		SyncInterval: 300,
	}
}
