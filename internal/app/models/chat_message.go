package models

import "time"

// ChatMessage represents a message in a swap request's negotiation channel.
// Messages belong to exactly one request and are never mutated; the channel
// becomes read-only once the request is terminal.
type ChatMessage struct {
	ID        int64     `json:"id" db:"id"`
	RequestID int64     `json:"requestId" db:"request_id"`
	SenderID  int64     `json:"senderId" db:"sender_id"`
	Body      string    `json:"body" db:"body"`
	SentAt    time.Time `json:"sentAt" db:"sent_at"`

	// Related entities
	Sender *Student `json:"sender,omitempty"`
}
