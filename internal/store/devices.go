package store

import (
	"context"

	"github.com/chatvault/core/internal/bridge"
	"github.com/chatvault/core/internal/models"
	"github.com/chatvault/core/internal/uuid"
)

const deviceColumns = "id, user_id, fingerprint, last_sync_at, created_at"

// RegisterDevice records this installation. Idempotent on the fingerprint:
// re-registering an existing fingerprint updates ownership instead of
// inserting a duplicate row.
func (s *Store) RegisterDevice(ctx context.Context, device *models.Device) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if device.ID == "" {
		device.ID = models.UUID(uuid.New())
	}
	if device.CreatedAt == 0 {
		device.CreatedAt = now()
	}

	_, err := s.bridge.Run(ctx, `
	INSERT INTO devices (`+deviceColumns+`) VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(fingerprint) DO UPDATE SET user_id = excluded.user_id`,
		device.ID, device.UserID, device.Fingerprint, device.LastSyncAt, device.CreatedAt)
	if err != nil {
		return err
	}

	// The conflict path keeps the original row id; reload so the caller and
	// the event snapshot see the persisted identity.
	persisted, err := s.GetDeviceByFingerprint(ctx, device.Fingerprint)
	if err != nil {
		return err
	}
	if persisted != nil {
		*device = *persisted
	}

	return s.appendEvent(ctx, models.EntityDevice, device.ID, device.UserID, models.OperationCreate, device)
}

// GetDeviceByFingerprint retrieves a device row by its fingerprint.
// Absence yields (nil, nil).
func (s *Store) GetDeviceByFingerprint(ctx context.Context, fingerprint string) (*models.Device, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.bridge.Query(ctx,
		"SELECT "+deviceColumns+" FROM devices WHERE fingerprint = ?", fingerprint)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return scanDevice(rows[0]), nil
}

// TouchDeviceSync records a successful synchronization point for a device.
func (s *Store) TouchDeviceSync(ctx context.Context, deviceID models.UUID, syncedAt int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	_, err := s.bridge.Run(ctx,
		"UPDATE devices SET last_sync_at = ? WHERE id = ?", syncedAt, deviceID)
	return err
}

func scanDevice(r bridge.Row) *models.Device {
	return &models.Device{
		ID:          rowUUID(r, "id"),
		UserID:      rowUUID(r, "user_id"),
		Fingerprint: rowString(r, "fingerprint"),
		LastSyncAt:  rowNullableInt64(r, "last_sync_at"),
		CreatedAt:   rowInt64(r, "created_at"),
	}
}
