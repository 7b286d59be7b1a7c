package model

import "time"

// SessionSummary is the list-view entity for a chat session. Title is
// either backend-supplied or derived locally from the first user message.
type SessionSummary struct {
	ID        string    `json:"id"`
	LLMModel  string    `json:"llm_model"`
	CreatedAt time.Time `json:"created_at"`
	Title     string    `json:"title,omitempty"`
}

// ChatSession is the detail-view entity holding the full message history.
type ChatSession struct {
	ID        string    `json:"id"`
	LLMModel  string    `json:"llm_model"`
	CreatedAt time.Time `json:"created_at"`
	UserID    string    `json:"user_id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Messages  []Message `json:"messages"`
}

// CreateSessionRequest is the payload to create a new chat session.
type CreateSessionRequest struct {
	LLMModel string `json:"llm_model"`
}

// titleLimit is the maximum number of characters of the first user message
// used as a session title.
const titleLimit = 25

// DeriveTitle derives a session title from the first user message.
// Content longer than the limit is truncated and suffixed with an ellipsis.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleLimit {
		return content
	}
	return string(runes[:titleLimit]) + "..."
}

// PlaceholderTitle builds an id-derived title for a session that has no
// user message yet.
func PlaceholderTitle(id string) string {
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return "Chat " + short
}
