package models

// MessageRole identifies the author side of a message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single chat message. Immutable after creation except for
// the soft-delete status; there is no general update path.
type Message struct {
	ID        UUID         `db:"id" json:"id"`
	ChatID    UUID         `db:"chat_id" json:"chat_id"`
	Role      MessageRole  `db:"role" json:"role"`
	Content   string       `db:"content" json:"content"`
	Status    RecordStatus `db:"status" json:"status"`
	CreatedAt int64        `db:"created_at" json:"created_at"`
}

// TableName returns the table name for Message.
func (Message) TableName() string {
	return "messages"
}
