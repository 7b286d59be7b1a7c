// Package auth orchestrates the authentication lifecycle against the
// backend: login, registration, logout and the identity probe.
package auth

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-client/internal/api"
	"github.com/capitalize-ai/chat-client/internal/credential"
	"github.com/capitalize-ai/chat-client/internal/model"
	"github.com/capitalize-ai/chat-client/pkg/logger"
)

// State is the authentication lifecycle state.
type State int

const (
	// StateResolving means the initial identity probe has not finished.
	StateResolving State = iota
	// StateAuthenticated means the probe returned a user.
	StateAuthenticated
	// StateUnauthenticated means there is no valid credential.
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// ErrIdentityUnavailable reports that a login call succeeded but the
// follow-up identity probe yielded no user.
var ErrIdentityUnavailable = errors.New("login succeeded but identity could not be resolved")

// Listener is notified on every state transition. The presentation layer
// uses it to decide which views are reachable.
type Listener func(State, *model.User)

// Controller owns the authentication state. It is constructor-injected
// into consumers; there is no package-level instance.
type Controller struct {
	client *api.Client
	creds  credential.Store
	logger *logger.Logger

	mu        sync.Mutex
	state     State
	user      *model.User
	listeners []Listener
}

// NewController creates a controller in the resolving state.
func NewController(client *api.Client, creds credential.Store, log *logger.Logger) *Controller {
	return &Controller{
		client: client,
		creds:  creds,
		logger: log,
		state:  StateResolving,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// User returns the authenticated user, or nil.
func (c *Controller) User() *model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// OnChange registers a transition listener.
func (c *Controller) OnChange(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Controller) transition(state State, user *model.User) {
	c.mu.Lock()
	c.state = state
	c.user = user
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, l := range listeners {
		l(state, user)
	}
}

// Resolve runs the one-time identity probe on entry to the system. Any
// failure, unauthorized or otherwise, fails safe: the credential is
// cleared and the state becomes unauthenticated. Resolve never returns
// an error.
func (c *Controller) Resolve(ctx context.Context) State {
	user, err := c.client.CurrentUser(ctx)
	if err != nil || user == nil {
		if err != nil {
			c.logger.Info("identity probe failed", zap.Error(err))
		}
		if err := c.creds.Clear(); err != nil {
			c.logger.Warn("failed to clear credential", zap.Error(err))
		}
		c.transition(StateUnauthenticated, nil)
		return StateUnauthenticated
	}

	c.logger.Info("identity resolved", zap.String("user_id", user.ID))
	c.transition(StateAuthenticated, user)
	return StateAuthenticated
}

// Login authenticates with the backend and re-runs the identity probe.
// A successful login that cannot be resolved to a user surfaces
// ErrIdentityUnavailable.
func (c *Controller) Login(ctx context.Context, email, password string) (*model.User, error) {
	token, err := c.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if token == nil || token.AccessToken == "" {
		return nil, ErrIdentityUnavailable
	}

	if err := c.creds.Set(token.AccessToken); err != nil {
		return nil, err
	}

	user, err := c.client.CurrentUser(ctx)
	if err != nil {
		return nil, errors.Join(ErrIdentityUnavailable, err)
	}
	if user == nil {
		return nil, ErrIdentityUnavailable
	}

	c.logger.Info("logged in", zap.String("user_id", user.ID))
	c.transition(StateAuthenticated, user)
	return user, nil
}

// Register creates a new account. The caller logs in separately; no
// credential is stored here.
func (c *Controller) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	return c.client.Register(ctx, req)
}

// Logout revokes the token best-effort and unconditionally forgets the
// local credential. A failing backend call never blocks the transition.
func (c *Controller) Logout(ctx context.Context) {
	if err := c.client.Logout(ctx); err != nil {
		c.logger.Warn("backend logout failed", zap.Error(err))
	}

	if err := c.creds.Clear(); err != nil {
		c.logger.Warn("failed to clear credential", zap.Error(err))
	}
	c.transition(StateUnauthenticated, nil)
}
