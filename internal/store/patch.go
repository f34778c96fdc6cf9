package store

import "github.com/chatvault/core/internal/models"

// ChatPatch is the set of chat fields an update may change. Nil fields are
// left untouched; UpdatedAt is always refreshed by the store.
type ChatPatch struct {
	Title *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ChatPatch) IsEmpty() bool {
	return p.Title == nil
}

// SyncConfigPatch is the set of sync policy fields an update may change.
type SyncConfigPatch struct {
	Mode         *models.SyncMode
	AutoSync     *bool
	SyncInterval *int64
}

// IsEmpty reports whether the patch changes nothing.
func (p SyncConfigPatch) IsEmpty() bool {
	return p.Mode == nil && p.AutoSync == nil && p.SyncInterval == nil
}
