package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-client/internal/model"
	"github.com/capitalize-ai/chat-client/pkg/logger"
	"github.com/capitalize-ai/chat-client/pkg/metrics"
)

// ErrSendInFlight reports that a send is already running for the stream.
// The presentation layer disables input while a send is pending; this is
// the structural backstop.
var ErrSendInFlight = errors.New("a send is already in flight")

// Stream holds the full message history of the one active session.
// Messages are kept in non-decreasing timestamp order after every append.
type Stream struct {
	id     string
	dir    *Directory
	logger *logger.Logger

	session model.ChatSession
	sending bool
}

// newStream must be called with the directory lock held or before the
// stream is published.
func (d *Directory) newStream(session model.ChatSession) *Stream {
	if session.Messages == nil {
		session.Messages = []model.Message{}
	}
	return &Stream{
		id:      session.ID,
		dir:     d,
		logger:  d.logger,
		session: session,
	}
}

// ID returns the session id.
func (s *Stream) ID() string {
	return s.id
}

// Title returns the session title.
func (s *Stream) Title() string {
	s.dir.mu.Lock()
	defer s.dir.mu.Unlock()
	return s.session.Title
}

// Len returns the number of loaded messages.
//
// Callers inside the package may hold the directory lock; use lenLocked
// there instead.
func (s *Stream) Len() int {
	s.dir.mu.Lock()
	defer s.dir.mu.Unlock()
	return len(s.session.Messages)
}

// Messages returns a copy of the message history in timestamp order.
func (s *Stream) Messages() []model.Message {
	s.dir.mu.Lock()
	defer s.dir.mu.Unlock()
	out := make([]model.Message, len(s.session.Messages))
	copy(out, s.session.Messages)
	return out
}

// AppendLocal inserts a message into the history and re-sorts by
// timestamp. When the message is the first user message in the session,
// a title is derived from its content and propagated to the directory.
func (s *Stream) AppendLocal(msg model.Message) {
	s.dir.mu.Lock()
	s.session.Messages = append(s.session.Messages, msg)
	sort.SliceStable(s.session.Messages, func(i, j int) bool {
		return s.session.Messages[i].Timestamp.Before(s.session.Messages[j].Timestamp)
	})

	title := ""
	if msg.Role == model.RoleUser && s.userMessageCount() == 1 {
		title = model.DeriveTitle(msg.Content)
		s.session.Title = title
	}
	s.dir.mu.Unlock()

	if title != "" {
		s.dir.setTitle(s.id, title)
	}
}

// lenLocked must be called with the directory lock held.
func (s *Stream) lenLocked() int {
	return len(s.session.Messages)
}

// userMessageCount must be called with the directory lock held.
func (s *Stream) userMessageCount() int {
	n := 0
	for _, m := range s.session.Messages {
		if m.Role == model.RoleUser {
			n++
		}
	}
	return n
}

// Send appends the user's message optimistically, posts it to the
// backend and appends the assistant reply. On failure the optimistic
// message stays in place; it is never retracted.
func (s *Stream) Send(ctx context.Context, content string) (*model.Message, error) {
	s.dir.mu.Lock()
	if s.sending {
		s.dir.mu.Unlock()
		return nil, ErrSendInFlight
	}
	s.sending = true
	s.dir.mu.Unlock()
	defer func() {
		s.dir.mu.Lock()
		s.sending = false
		s.dir.mu.Unlock()
	}()

	now := time.Now().UTC()
	s.AppendLocal(model.Message{
		ID:        model.LocalMessageID(now),
		Role:      model.RoleUser,
		Content:   content,
		Timestamp: now,
		SessionID: s.id,
	})

	reply, err := s.dir.client.SendMessage(ctx, s.id, content)
	if err != nil {
		s.logger.Warn("send failed",
			zap.String("session_id", s.id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("send message: %w", err)
	}

	assistant := *reply
	if assistant.Role == "" {
		assistant.Role = model.RoleAssistant
	}
	if assistant.Timestamp.IsZero() {
		assistant.Timestamp = time.Now().UTC()
	}
	if assistant.SessionID == "" {
		assistant.SessionID = s.id
	}
	s.AppendLocal(assistant)
	metrics.MessagesSent.Inc()

	return &assistant, nil
}
