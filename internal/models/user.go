package models

import "time"

// User is the account identity record. Created once per account, updated
// rarely, never hard-deleted in this layer.
type User struct {
	ID            UUID   `db:"id" json:"id"`
	DisplayName   string `db:"display_name" json:"display_name"`
	Email         string `db:"email" json:"email"`
	EmailVerified bool   `db:"email_verified" json:"email_verified"`
	AvatarURL     string `db:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt     int64  `db:"created_at" json:"created_at"`
	UpdatedAt     int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (u *User) CreatedAtTime() time.Time {
	return time.Unix(u.CreatedAt, 0)
}
