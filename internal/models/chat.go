package models

import "time"

// Chat is a conversation owned by exactly one user (by id reference).
// Deleting a chat sets Status to StatusDeleted and bumps UpdatedAt; the
// row persists as a tombstone for conflict comparison.
type Chat struct {
	ID        UUID         `db:"id" json:"id"`
	UserID    UUID         `db:"user_id" json:"user_id"`
	Title     string       `db:"title" json:"title"`
	Status    RecordStatus `db:"status" json:"status"`
	CreatedAt int64        `db:"created_at" json:"created_at"`
	UpdatedAt int64        `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for Chat.
func (Chat) TableName() string {
	return "chats"
}

// UpdatedAtTime returns the UpdatedAt as time.Time.
func (c *Chat) UpdatedAtTime() time.Time {
	return time.Unix(c.UpdatedAt, 0)
}

// Touch refreshes the UpdatedAt timestamp.
func (c *Chat) Touch() {
	c.UpdatedAt = time.Now().Unix()
}
