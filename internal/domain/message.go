package domain

import (
	"strings"
	"time"
)

const MaxMessageLen = 4096

type MessageID string

// Message is a chat record owned by the message store.
type Message struct {
	ID        MessageID  `json:"id"`
	RoomID    RoomID     `json:"roomId"`
	SenderID  UserID     `json:"senderId"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func NewMessage(senderID UserID, roomID RoomID, content string) (*Message, error) {
	if roomID == "" {
		return nil, NewValidationError("roomId", "required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, NewValidationError("content", "cannot be empty")
	}
	if len(content) > MaxMessageLen {
		return nil, NewValidationError("content", "too long")
	}
	return &Message{
		RoomID:   roomID,
		SenderID: senderID,
		Content:  content,
	}, nil
}
