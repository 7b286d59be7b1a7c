package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/capitalize-ai/chat-client/internal/model"
)

// Login submits form-encoded credentials and returns the issued token.
// No prior credential is required.
func (c *Client) Login(ctx context.Context, username, password string) (*model.Token, error) {
	form := url.Values{
		"username": {username},
		"password": {password},
	}

	body, err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "/auth/jwt/login",
		path:     "/auth/jwt/login",
		form:     form,
	})
	if err != nil {
		return nil, err
	}
	return decode[model.Token](body)
}

// Register creates a new account. It does not authenticate; callers log
// in separately.
func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	body, err := c.do(ctx, request{
		method:   http.MethodPost,
		endpoint: "/auth/register",
		path:     "/auth/register",
		body:     req,
	})
	if err != nil {
		return nil, err
	}
	return decode[model.User](body)
}

// CurrentUser probes which user the stored credential belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	body, err := c.do(ctx, request{
		method:       http.MethodGet,
		endpoint:     "/users/me",
		path:         "/users/me",
		requiresAuth: true,
	})
	if err != nil {
		return nil, err
	}
	return decode[model.User](body)
}

// Logout revokes the current token on the backend.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, request{
		method:       http.MethodPost,
		endpoint:     "/auth/jwt/logout",
		path:         "/auth/jwt/logout",
		body:         struct{}{},
		requiresAuth: true,
	})
	return err
}

// ListSessions fetches all session summaries for the current user.
func (c *Client) ListSessions(ctx context.Context) ([]model.SessionSummary, error) {
	body, err := c.do(ctx, request{
		method:       http.MethodGet,
		endpoint:     "/chat/sessions/",
		path:         "/chat/sessions/",
		requiresAuth: true,
	})
	if err != nil {
		return nil, err
	}

	sessions, err := decode[[]model.SessionSummary](body)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		return nil, nil
	}
	return *sessions, nil
}

// CreateSession requests a new session for the given model identifier.
func (c *Client) CreateSession(ctx context.Context, llmModel string) (*model.SessionSummary, error) {
	body, err := c.do(ctx, request{
		method:       http.MethodPost,
		endpoint:     "/chat/create_session/",
		path:         "/chat/create_session/",
		body:         model.CreateSessionRequest{LLMModel: llmModel},
		requiresAuth: true,
	})
	if err != nil {
		return nil, err
	}
	return decode[model.SessionSummary](body)
}

// SessionDetail fetches the full session, message history included.
func (c *Client) SessionDetail(ctx context.Context, id string) (*model.ChatSession, error) {
	body, err := c.do(ctx, request{
		method:       http.MethodGet,
		endpoint:     "/chat/sessions/{id}",
		path:         "/chat/sessions/" + url.PathEscape(id),
		requiresAuth: true,
	})
	if err != nil {
		return nil, err
	}
	return decode[model.ChatSession](body)
}

// DeleteSession removes a session on the backend.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{
		method:       http.MethodDelete,
		endpoint:     "/chat/sessions/{id}",
		path:         "/chat/sessions/" + url.PathEscape(id),
		requiresAuth: true,
	})
	return err
}

// SendMessage posts a user message and returns the assistant reply. The
// backend takes the content as a query parameter, not a body.
func (c *Client) SendMessage(ctx context.Context, sessionID, content string) (*model.Message, error) {
	body, err := c.do(ctx, request{
		method:       http.MethodPost,
		endpoint:     "/chat/message/{id}",
		path:         "/chat/message/" + url.PathEscape(sessionID),
		query:        url.Values{"message": {content}},
		requiresAuth: true,
	})
	if err != nil {
		return nil, err
	}

	msg, err := decode[model.Message](body)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, fmt.Errorf("send message: empty response for session %s", sessionID)
	}
	return msg, nil
}

// ResumeSession loads a session's history back into the backend's
// conversation memory so follow-up messages have their context.
func (c *Client) ResumeSession(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{
		method:       http.MethodPost,
		endpoint:     "/chat/sessions/{id}/resume",
		path:         "/chat/sessions/" + url.PathEscape(id) + "/resume",
		requiresAuth: true,
	})
	return err
}

// RestartSessionResponse carries the replacement session id issued by the
// backend when a session is restarted.
type RestartSessionResponse struct {
	NewSessionID string `json:"new_session_id"`
}

// RestartSession discards a session's server-side memory and returns the
// id of its replacement.
func (c *Client) RestartSession(ctx context.Context, id string) (*RestartSessionResponse, error) {
	body, err := c.do(ctx, request{
		method:       http.MethodPost,
		endpoint:     "/chat/restart_session/{id}",
		path:         "/chat/restart_session/" + url.PathEscape(id),
		requiresAuth: true,
	})
	if err != nil {
		return nil, err
	}
	return decode[RestartSessionResponse](body)
}
