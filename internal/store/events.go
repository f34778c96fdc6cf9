package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chatvault/core/internal/bridge"
	"github.com/chatvault/core/internal/models"
	"github.com/chatvault/core/internal/notify"
	"github.com/chatvault/core/internal/uuid"
)

// appendEvent writes one change-log record and raises the local
// notification. snapshot must be JSON-serializable; for creates it is the
// full entity, for updates the changed fields, for deletes just the id.
func (s *Store) appendEvent(ctx context.Context, entityType models.EntityType, entityID, userID models.UUID, op models.SyncOperation, snapshot interface{}) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	ev := &models.SyncEvent{
		ID:         models.UUID(uuid.New()),
		EntityType: entityType,
		EntityID:   entityID,
		Operation:  op,
		Snapshot:   data,
		Timestamp:  now(),
		UserID:     userID,
		DeviceID:   s.deviceID,
		Synced:     false,
	}

	_, err = s.bridge.Run(ctx, `
	INSERT INTO sync_events (id, entity_type, entity_id, operation, snapshot, timestamp, user_id, device_id, synced)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		ev.ID, ev.EntityType, ev.EntityID, ev.Operation, string(ev.Snapshot),
		ev.Timestamp, ev.UserID, ev.DeviceID)
	if err != nil {
		return err
	}

	if s.bus != nil {
		s.bus.Publish(notify.Event{
			EventID:    ev.ID,
			EntityType: ev.EntityType,
			EntityID:   ev.EntityID,
			Operation:  ev.Operation,
			UserID:     ev.UserID,
			Timestamp:  ev.Timestamp,
		})
	}
	return nil
}

// GetUnsyncedEvents returns all unacknowledged events, oldest first so the
// sync driver pushes them in causal order. An empty userID returns events
// for every user.
func (s *Store) GetUnsyncedEvents(ctx context.Context, userID models.UUID) ([]*models.SyncEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	query := `
	SELECT id, entity_type, entity_id, operation, snapshot, timestamp, user_id, device_id, synced
	FROM sync_events WHERE synced = 0`
	args := []interface{}{}
	if userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	query += " ORDER BY timestamp ASC"

	rows, err := s.bridge.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	events := make([]*models.SyncEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, scanSyncEvent(r))
	}
	return events, nil
}

// MarkEventSynced flips an event's synced flag after the remote backend has
// acknowledged it. Unknown or already-synced ids are a no-op, which keeps
// the call idempotent under at-least-once delivery.
func (s *Store) MarkEventSynced(ctx context.Context, eventID models.UUID) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	_, err := s.bridge.Run(ctx, "UPDATE sync_events SET synced = 1 WHERE id = ?", eventID)
	return err
}

// PruneSyncedEvents deletes acknowledged change-log rows to reclaim local
// storage. Used as the quota recovery action; unsynced rows are never
// touched.
func (s *Store) PruneSyncedEvents(ctx context.Context) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	_, err := s.bridge.Run(ctx, "DELETE FROM sync_events WHERE synced = 1")
	return err
}

func scanSyncEvent(r bridge.Row) *models.SyncEvent {
	return &models.SyncEvent{
		ID:         rowUUID(r, "id"),
		EntityType: models.EntityType(rowString(r, "entity_type")),
		EntityID:   rowUUID(r, "entity_id"),
		Operation:  models.SyncOperation(rowString(r, "operation")),
		Snapshot:   json.RawMessage(rowString(r, "snapshot")),
		Timestamp:  rowInt64(r, "timestamp"),
		UserID:     rowUUID(r, "user_id"),
		DeviceID:   rowString(r, "device_id"),
		Synced:     rowBool(r, "synced"),
	}
}
