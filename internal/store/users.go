package store

import (
	"context"

	"github.com/chatvault/core/internal/bridge"
	"github.com/chatvault/core/internal/models"
	"github.com/chatvault/core/internal/uuid"
)

// CreateUser persists the account identity record and appends a create
// event. A missing id and missing timestamps are filled in.
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	if user.ID == "" {
		user.ID = models.UUID(uuid.New())
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = now()
	}
	if user.UpdatedAt == 0 {
		user.UpdatedAt = user.CreatedAt
	}

	_, err := s.bridge.Run(ctx, `
	INSERT INTO users (id, display_name, email, email_verified, avatar_url, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.DisplayName, user.Email, user.EmailVerified,
		user.AvatarURL, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return err
	}

	return s.appendEvent(ctx, models.EntityUser, user.ID, user.ID, models.OperationCreate, user)
}

// GetUser retrieves a user by id. Absence yields (nil, nil).
func (s *Store) GetUser(ctx context.Context, id models.UUID) (*models.User, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.bridge.Query(ctx, `
	SELECT id, display_name, email, email_verified, avatar_url, created_at, updated_at
	FROM users WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return scanUser(rows[0]), nil
}

func scanUser(r bridge.Row) *models.User {
	return &models.User{
		ID:            rowUUID(r, "id"),
		DisplayName:   rowString(r, "display_name"),
		Email:         rowString(r, "email"),
		EmailVerified: rowBool(r, "email_verified"),
		AvatarURL:     rowString(r, "avatar_url"),
		CreatedAt:     rowInt64(r, "created_at"),
		UpdatedAt:     rowInt64(r, "updated_at"),
	}
}
