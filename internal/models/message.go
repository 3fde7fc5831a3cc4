package models

import "time"

// Message is the persisted form of a chat message. The live copy fanned
// out to clients is the wire event, not this struct.
type Message struct {
	ID         string     `json:"id"`
	SenderID   int        `json:"sender_id"`
	ReceiverID int        `json:"receiver_id"`
	Room       string     `json:"room"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`

	// SenderName and ReceiverName are filled on read paths for replaying
	// history; they are not stored columns.
	SenderName   string `json:"-"`
	ReceiverName string `json:"-"`
}

// Expired reports whether the message has passed its expiry. Messages
// without an expiry never expire.
func (m *Message) Expired(now time.Time) bool {
	return m.ExpiresAt != nil && now.After(*m.ExpiresAt)
}
