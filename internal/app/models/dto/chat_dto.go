package dto

import (
	"time"

	"github.com/batchswap/batchswap/internal/app/models"
)

// SendChatMessageRequest represents the payload for posting a message on a
// swap request's negotiation channel
type SendChatMessageRequest struct {
	Body string `json:"body" binding:"required,min=1,max=4000"`
}

// ChatMessageResponse represents a negotiation message
type ChatMessageResponse struct {
	ID         int64     `json:"id"`
	RequestID  int64     `json:"requestId"`
	SenderID   int64     `json:"senderId"`
	SenderName string    `json:"senderName,omitempty"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sentAt"`
}

// ToChatMessageResponse maps a chat message model to its response DTO
func ToChatMessageResponse(m *models.ChatMessage) ChatMessageResponse {
	resp := ChatMessageResponse{
		ID:        m.ID,
		RequestID: m.RequestID,
		SenderID:  m.SenderID,
		Body:      m.Body,
		SentAt:    m.SentAt,
	}
	if m.Sender != nil {
		resp.SenderName = m.Sender.FirstName + " " + m.Sender.LastName
	}
	return resp
}

// ChatHistoryRequest are the query parameters for the history fetch. Each
// call returns the newest `limit` messages sent before the cursor; repeating
// with `before` set to the oldest returned sentAt pages backward until the
// start of the conversation.
type ChatHistoryRequest struct {
	Before *time.Time `form:"before" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit  int        `form:"limit,default=50" binding:"omitempty,min=1,max=200"`
}
