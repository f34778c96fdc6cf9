package store

import (
	"context"

	"github.com/chatvault/core/internal/bridge"
	"github.com/chatvault/core/internal/models"
	"github.com/chatvault/core/internal/uuid"
)

const chatColumns = "id, user_id, title, status, created_at, updated_at"

// CreateChat persists a chat and appends a create event with the full
// entity as snapshot.
func (s *Store) CreateChat(ctx context.Context, chat *models.Chat) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if chat.ID == "" {
		chat.ID = models.UUID(uuid.New())
	}
	if chat.Status == "" {
		chat.Status = models.StatusActive
	}
	if chat.CreatedAt == 0 {
		chat.CreatedAt = now()
	}
	if chat.UpdatedAt == 0 {
		chat.UpdatedAt = chat.CreatedAt
	}

	_, err := s.bridge.Run(ctx, `
	INSERT INTO chats (`+chatColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		chat.ID, chat.UserID, chat.Title, chat.Status, chat.CreatedAt, chat.UpdatedAt)
	if err != nil {
		return err
	}

	return s.appendEvent(ctx, models.EntityChat, chat.ID, chat.UserID, models.OperationCreate, chat)
}

// GetChat retrieves an active chat by id. Soft-deleted chats and unknown
// ids both yield (nil, nil).
func (s *Store) GetChat(ctx context.Context, id models.UUID) (*models.Chat, error) {
	return s.getChat(ctx, id, false)
}

// GetChatAny retrieves a chat regardless of status. Tombstones stay
// reachable here so conflict resolution can compare against them.
func (s *Store) GetChatAny(ctx context.Context, id models.UUID) (*models.Chat, error) {
	return s.getChat(ctx, id, true)
}

func (s *Store) getChat(ctx context.Context, id models.UUID, includeDeleted bool) (*models.Chat, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	query := "SELECT " + chatColumns + " FROM chats WHERE id = ?"
	if !includeDeleted {
		query += " AND status = 'active'"
	}

	rows, err := s.bridge.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return scanChat(rows[0]), nil
}

// GetUserChats lists a user's active chats, most recently updated first.
func (s *Store) GetUserChats(ctx context.Context, userID models.UUID) ([]*models.Chat, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.bridge.Query(ctx, `
	SELECT `+chatColumns+` FROM chats
	WHERE user_id = ? AND status = 'active'
	ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}

	chats := make([]*models.Chat, 0, len(rows))
	for _, r := range rows {
		chats = append(chats, scanChat(r))
	}
	return chats, nil
}

// UpdateChat applies a patch to a chat, refreshes UpdatedAt, and appends
// an update event whose snapshot holds only the changed fields.
func (s *Store) UpdateChat(ctx context.Context, id models.UUID, patch ChatPatch) (*models.Chat, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	chat, err := s.GetChatAny(ctx, id)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, nil
	}

	updatedAt := now()
	assignments := "updated_at = ?"
	args := []interface{}{updatedAt}
	changed := map[string]interface{}{"updated_at": updatedAt}

	if patch.Title != nil {
		assignments += ", title = ?"
		args = append(args, *patch.Title)
		changed["title"] = *patch.Title
		chat.Title = *patch.Title
	}
	args = append(args, id)

	if _, err := s.bridge.Run(ctx, "UPDATE chats SET "+assignments+" WHERE id = ?", args...); err != nil {
		return nil, err
	}
	chat.UpdatedAt = updatedAt

	if err := s.appendEvent(ctx, models.EntityChat, chat.ID, chat.UserID, models.OperationUpdate, changed); err != nil {
		return nil, err
	}
	return chat, nil
}

// DeleteChat soft-deletes a chat: the row stays as a tombstone with a
// refreshed UpdatedAt, and a delete event with an id-only snapshot is
// appended. Deleting an unknown or already-deleted chat is a no-op.
func (s *Store) DeleteChat(ctx context.Context, id models.UUID) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	chat, err := s.GetChat(ctx, id)
	if err != nil {
		return err
	}
	if chat == nil {
		return nil
	}

	_, err = s.bridge.Run(ctx,
		"UPDATE chats SET status = 'deleted', updated_at = ? WHERE id = ?", now(), id)
	if err != nil {
		return err
	}

	return s.appendEvent(ctx, models.EntityChat, id, chat.UserID, models.OperationDelete,
		map[string]interface{}{"id": id})
}

// UpsertResolvedChat writes a conflict-resolved chat back, bypassing the
// change log: applying a resolution is not a local edit and must not
// generate a new sync event. Insert and update share one statement so
// re-application after a retried sync stays idempotent.
func (s *Store) UpsertResolvedChat(ctx context.Context, chat *models.Chat) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	_, err := s.bridge.Run(ctx, `
	INSERT INTO chats (`+chatColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		status = excluded.status,
		updated_at = excluded.updated_at`,
		chat.ID, chat.UserID, chat.Title, chat.Status, chat.CreatedAt, chat.UpdatedAt)
	return err
}

func scanChat(r bridge.Row) *models.Chat {
	return &models.Chat{
		ID:        rowUUID(r, "id"),
		UserID:    rowUUID(r, "user_id"),
		Title:     rowString(r, "title"),
		Status:    models.RecordStatus(rowString(r, "status")),
		CreatedAt: rowInt64(r, "created_at"),
		UpdatedAt: rowInt64(r, "updated_at"),
	}
}
