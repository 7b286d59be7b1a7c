package model

import (
	"fmt"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a chat session. The ID is either
// server-assigned or a client-generated placeholder for a message shown
// optimistically before the backend confirms it. The backend never returns
// a replacement id for the user's own message, so the placeholder is a
// permanent local identity.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
}

// LocalMessageID builds the placeholder id for an optimistic user message.
func LocalMessageID(at time.Time) string {
	return fmt.Sprintf("temp_user_%d", at.UnixMilli())
}
