package store

import (
	"context"
	"fmt"

	"github.com/chatvault/core/internal/bridge"
	"github.com/chatvault/core/internal/models"
	"github.com/chatvault/core/internal/uuid"
)

const messageColumns = "id, chat_id, role, content, status, created_at"

// CreateMessage persists a message and appends a create event attributed
// to the owning chat's user. Messages are immutable after creation except
// for the soft-delete status.
func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	owner, err := s.chatOwner(ctx, msg.ChatID)
	if err != nil {
		return err
	}

	if msg.ID == "" {
		msg.ID = models.UUID(uuid.New())
	}
	if msg.Status == "" {
		msg.Status = models.StatusActive
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = now()
	}

	_, err = s.bridge.Run(ctx, `
	INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ChatID, msg.Role, msg.Content, msg.Status, msg.CreatedAt)
	if err != nil {
		return err
	}

	return s.appendEvent(ctx, models.EntityMessage, msg.ID, owner, models.OperationCreate, msg)
}

// GetMessage retrieves an active message by id. Soft-deleted messages and
// unknown ids both yield (nil, nil).
func (s *Store) GetMessage(ctx context.Context, id models.UUID) (*models.Message, error) {
	return s.getMessage(ctx, id, false)
}

// GetMessageAny retrieves a message regardless of status, for conflict
// comparison against tombstones.
func (s *Store) GetMessageAny(ctx context.Context, id models.UUID) (*models.Message, error) {
	return s.getMessage(ctx, id, true)
}

func (s *Store) getMessage(ctx context.Context, id models.UUID, includeDeleted bool) (*models.Message, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	query := "SELECT " + messageColumns + " FROM messages WHERE id = ?"
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
	return scanMessage(rows[0]), nil
}

// GetChatMessages lists a chat's active messages in creation order.
func (s *Store) GetChatMessages(ctx context.Context, chatID models.UUID) ([]*models.Message, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.bridge.Query(ctx, `
	SELECT `+messageColumns+` FROM messages
	WHERE chat_id = ? AND status = 'active'
	ORDER BY created_at ASC`, chatID)
	if err != nil {
		return nil, err
	}

	msgs := make([]*models.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, scanMessage(r))
	}
	return msgs, nil
}

// DeleteMessage soft-deletes a message and appends a delete event with an
// id-only snapshot. Unknown or already-deleted ids are a no-op.
func (s *Store) DeleteMessage(ctx context.Context, id models.UUID) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	msg, err := s.GetMessage(ctx, id)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}

	owner, err := s.chatOwner(ctx, msg.ChatID)
	if err != nil {
		return err
	}

	_, err = s.bridge.Run(ctx, "UPDATE messages SET status = 'deleted' WHERE id = ?", id)
	if err != nil {
		return err
	}

	return s.appendEvent(ctx, models.EntityMessage, id, owner, models.OperationDelete,
		map[string]interface{}{"id": id})
}

// UpsertResolvedMessage writes a conflict-resolved message back without
// appending a sync event, mirroring UpsertResolvedChat.
func (s *Store) UpsertResolvedMessage(ctx context.Context, msg *models.Message) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	_, err := s.bridge.Run(ctx, `
	INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		content = excluded.content,
		status = excluded.status`,
		msg.ID, msg.ChatID, msg.Role, msg.Content, msg.Status, msg.CreatedAt)
	return err
}

// chatOwner resolves the owning user of a chat, tombstones included, so a
// message mutation can be attributed even after its chat was deleted.
func (s *Store) chatOwner(ctx context.Context, chatID models.UUID) (models.UUID, error) {
	chat, err := s.GetChatAny(ctx, chatID)
	if err != nil {
		return "", err
	}
	if chat == nil {
		return "", fmt.Errorf("chat %s not found", chatID)
	}
	return chat.UserID, nil
}

func scanMessage(r bridge.Row) *models.Message {
	return &models.Message{
		ID:        rowUUID(r, "id"),
		ChatID:    rowUUID(r, "chat_id"),
		Role:      models.MessageRole(rowString(r, "role")),
		Content:   rowString(r, "content"),
		Status:    models.RecordStatus(rowString(r, "status")),
		CreatedAt: rowInt64(r, "created_at"),
	}
}
