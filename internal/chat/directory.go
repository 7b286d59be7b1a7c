// Package chat maintains the local model of the user's chat sessions: the
// directory of session summaries and the message stream of the one active
// session. Mutations are applied optimistically and reconciled with the
// backend on failure.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-client/internal/api"
	"github.com/capitalize-ai/chat-client/internal/model"
	"github.com/capitalize-ai/chat-client/pkg/logger"
)

// ErrSuperseded reports that a session detail response arrived after the
// user had already selected a different session; the result is discarded.
var ErrSuperseded = errors.New("selection superseded")

// Directory caches the session summaries for the authenticated user and
// owns the active stream.
type Directory struct {
	client *api.Client
	logger *logger.Logger

	mu        sync.Mutex
	sessions  []model.SessionSummary
	active    *Stream
	selection uint64
	loading   bool
}

// NewDirectory creates an empty directory.
func NewDirectory(client *api.Client, log *logger.Logger) *Directory {
	return &Directory{
		client: client,
		logger: log,
	}
}

// Sessions returns a copy of the cached summaries, newest first.
func (d *Directory) Sessions() []model.SessionSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.SessionSummary, len(d.sessions))
	copy(out, d.sessions)
	return out
}

// Active returns the currently selected stream, or nil.
func (d *Directory) Active() *Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Refresh fetches all summaries from the backend and replaces the cache.
// A nil list from the backend is an empty directory, not an error. A
// refresh already in flight is not re-entered; the current cache is
// returned instead.
func (d *Directory) Refresh(ctx context.Context) ([]model.SessionSummary, error) {
	d.mu.Lock()
	if d.loading {
		out := make([]model.SessionSummary, len(d.sessions))
		copy(out, d.sessions)
		d.mu.Unlock()
		return out, nil
	}
	d.loading = true
	d.mu.Unlock()

	sessions, err := d.client.ListSessions(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.loading = false
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	if sessions == nil {
		sessions = []model.SessionSummary{}
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	for i := range sessions {
		if sessions[i].Title == "" {
			sessions[i].Title = model.PlaceholderTitle(sessions[i].ID)
		}
	}

	d.sessions = sessions
	out := make([]model.SessionSummary, len(sessions))
	copy(out, sessions)
	return out, nil
}

// Create requests a new session for the given model identifier, prepends
// it to the cache and makes it the active session with an empty history.
// The empty detail is never round-tripped.
func (d *Directory) Create(ctx context.Context, llmModel string) (*Stream, error) {
	created, err := d.client.CreateSession(ctx, llmModel)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if created == nil || created.ID == "" {
		return nil, fmt.Errorf("create session: backend returned no session id")
	}

	summary := *created
	if summary.LLMModel == "" {
		summary.LLMModel = llmModel
	}
	summary.Title = model.PlaceholderTitle(summary.ID)

	stream := d.newStream(model.ChatSession{
		ID:        summary.ID,
		LLMModel:  summary.LLMModel,
		CreatedAt: summary.CreatedAt,
		Title:     summary.Title,
		Messages:  []model.Message{},
	})

	d.mu.Lock()
	d.sessions = append([]model.SessionSummary{summary}, d.sessions...)
	d.active = stream
	d.selection++
	d.mu.Unlock()

	d.logger.Info("session created",
		zap.String("session_id", summary.ID),
		zap.String("llm_model", summary.LLMModel),
	)
	return stream, nil
}

// Select makes the given session active and loads its full history.
// Re-selecting the already-active session with loaded messages is a
// no-op. A response that resolves after a newer selection is discarded
// with ErrSuperseded.
func (d *Directory) Select(ctx context.Context, id string) (*Stream, error) {
	d.mu.Lock()
	if d.active != nil && d.active.id == id && d.active.lenLocked() > 0 {
		active := d.active
		d.mu.Unlock()
		return active, nil
	}
	d.selection++
	token := d.selection
	d.mu.Unlock()

	detail, err := d.client.SessionDetail(ctx, id)

	d.mu.Lock()
	if token != d.selection {
		d.mu.Unlock()
		return nil, ErrSuperseded
	}

	if err != nil || detail == nil {
		d.active = nil
		d.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("empty session detail")
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}

	sort.SliceStable(detail.Messages, func(i, j int) bool {
		return detail.Messages[i].Timestamp.Before(detail.Messages[j].Timestamp)
	})

	stream := d.newStream(*detail)
	d.active = stream
	d.mu.Unlock()

	// Rehydrate the backend's conversation memory so follow-up messages
	// see the history. Best effort: the loaded session stays valid even
	// when the resume call fails.
	if err := d.client.ResumeSession(ctx, id); err != nil {
		d.logger.Warn("resume failed",
			zap.String("session_id", id),
			zap.Error(err),
		)
	}
	return stream, nil
}

// Delete removes the session optimistically, clearing the active stream
// when it is the one being deleted. When the backend call fails, the
// whole list is re-fetched instead of re-inserting the removed entry.
func (d *Directory) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	kept := d.sessions[:0]
	for _, s := range d.sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	d.sessions = kept
	if d.active != nil && d.active.id == id {
		d.active = nil
		d.selection++
	}
	d.mu.Unlock()

	if err := d.client.DeleteSession(ctx, id); err != nil {
		d.logger.Warn("delete failed, resynchronizing",
			zap.String("session_id", id),
			zap.Error(err),
		)
		if _, refreshErr := d.Refresh(ctx); refreshErr != nil {
			d.logger.Warn("resynchronization failed", zap.Error(refreshErr))
		}
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	d.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

// Restart asks the backend to replace the session with a fresh one,
// swaps the directory entry and activates the replacement with an empty
// history.
func (d *Directory) Restart(ctx context.Context, id string) (*Stream, error) {
	resp, err := d.client.RestartSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("restart session %s: %w", id, err)
	}
	if resp == nil || resp.NewSessionID == "" {
		return nil, fmt.Errorf("restart session %s: backend returned no replacement id", id)
	}

	d.mu.Lock()
	llmModel := ""
	kept := d.sessions[:0]
	for _, s := range d.sessions {
		if s.ID == id {
			llmModel = s.LLMModel
			continue
		}
		kept = append(kept, s)
	}
	d.sessions = kept

	summary := model.SessionSummary{
		ID:       resp.NewSessionID,
		LLMModel: llmModel,
		Title:    model.PlaceholderTitle(resp.NewSessionID),
	}
	stream := d.newStream(model.ChatSession{
		ID:       summary.ID,
		LLMModel: summary.LLMModel,
		Title:    summary.Title,
		Messages: []model.Message{},
	})
	d.sessions = append([]model.SessionSummary{summary}, d.sessions...)
	d.active = stream
	d.selection++
	d.mu.Unlock()

	d.logger.Info("session restarted",
		zap.String("old_session_id", id),
		zap.String("new_session_id", resp.NewSessionID),
	)
	return stream, nil
}

// setTitle updates the cached summary for a session. This is the only
// write-back path from the stream into the directory.
func (d *Directory) setTitle(id, title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.sessions {
		if d.sessions[i].ID == id {
			d.sessions[i].Title = title
			return
		}
	}
}
