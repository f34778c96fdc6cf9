package store

import (
	"context"

	"github.com/chatvault/core/internal/bridge"
	"github.com/chatvault/core/internal/models"
)

const syncConfigColumns = "user_id, mode, auto_sync, sync_interval, updated_at"

// GetSyncConfig retrieves a user's sync policy. Absence yields (nil, nil);
// callers wanting defaults use models.DefaultSyncConfig.
func (s *Store) GetSyncConfig(ctx context.Context, userID models.UUID) (*models.SyncConfig, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.bridge.Query(ctx,
		"SELECT "+syncConfigColumns+" FROM sync_config WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return scanSyncConfig(rows[0]), nil
}

// UpdateSyncConfig upserts the per-user sync policy: the first write creates
// a defaulted row with the patch applied, later writes patch in place. The
// appended update event carries only the changed fields.
func (s *Store) UpdateSyncConfig(ctx context.Context, userID models.UUID, patch SyncConfigPatch) (*models.SyncConfig, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	cfg, err := s.GetSyncConfig(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = models.DefaultSyncConfig(userID)
	}

	updatedAt := now()
	changed := map[string]interface{}{"updated_at": updatedAt}

	if patch.Mode != nil {
		cfg.Mode = *patch.Mode
		changed["mode"] = *patch.Mode
	}
	if patch.AutoSync != nil {
		cfg.AutoSync = *patch.AutoSync
		changed["auto_sync"] = *patch.AutoSync
	}
	if patch.SyncInterval != nil {
		cfg.SyncInterval = *patch.SyncInterval
		changed["sync_interval"] = *patch.SyncInterval
	}
	cfg.UpdatedAt = updatedAt

	_, err = s.bridge.Run(ctx, `
	INSERT INTO sync_config (`+syncConfigColumns+`) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		mode = excluded.mode,
		auto_sync = excluded.auto_sync,
		sync_interval = excluded.sync_interval,
		updated_at = excluded.updated_at`,
		cfg.UserID, cfg.Mode, cfg.AutoSync, cfg.SyncInterval, cfg.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := s.appendEvent(ctx, models.EntitySyncConfig, userID, userID, models.OperationUpdate, changed); err != nil {
		return nil, err
	}
	return cfg, nil
}

func scanSyncConfig(r bridge.Row) *models.SyncConfig {
	return &models.SyncConfig{
		UserID:       rowUUID(r, "user_id"),
		Mode:         models.SyncMode(rowString(r, "mode")),
		AutoSync:     rowBool(r, "auto_sync"),
		SyncInterval: rowInt64(r, "sync_interval"),
		UpdatedAt:    rowInt64(r, "updated_at"),
	}
}
