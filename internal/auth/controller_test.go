package auth

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-client/internal/api"
	"github.com/capitalize-ai/chat-client/internal/api/apitest"
	"github.com/capitalize-ai/chat-client/internal/credential"
	"github.com/capitalize-ai/chat-client/internal/model"
	"github.com/capitalize-ai/chat-client/pkg/logger"
)

func newTestController(t *testing.T) (*Controller, *apitest.Server, *credential.MemoryStore) {
	t.Helper()
	server := apitest.NewServer()
	t.Cleanup(server.Close)

	creds := credential.NewMemoryStore()
	client := api.New(server.URL, 0, creds, logger.NewNop())
	return NewController(client, creds, logger.NewNop()), server, creds
}

func TestInitialStateIsResolving(t *testing.T) {
	controller, _, _ := newTestController(t)
	require.Equal(t, StateResolving, controller.State())
	require.Nil(t, controller.User())
}

func TestResolveWithValidCredential(t *testing.T) {
	controller, server, creds := newTestController(t)
	userID := server.AddUser("a@b.com", "pw", "Ada")
	require.NoError(t, creds.Set(server.Token(userID)))

	require.Equal(t, StateAuthenticated, controller.Resolve(context.Background()))
	require.Equal(t, "a@b.com", controller.User().Email)
}

func TestResolveWithoutCredential(t *testing.T) {
	controller, _, creds := newTestController(t)

	require.Equal(t, StateUnauthenticated, controller.Resolve(context.Background()))
	_, ok := creds.Get()
	require.False(t, ok)
}

func TestResolveServerErrorFailsSafe(t *testing.T) {
	controller, server, creds := newTestController(t)
	userID := server.AddUser("a@b.com", "pw", "")
	require.NoError(t, creds.Set(server.Token(userID)))
	server.Fail(apitest.OpMe, http.StatusInternalServerError, "")

	// A non-auth failure is treated like an auth failure: clear and
	// fall back to unauthenticated, never an error state.
	require.Equal(t, StateUnauthenticated, controller.Resolve(context.Background()))
	_, ok := creds.Get()
	require.False(t, ok)
}

func TestLoginFlow(t *testing.T) {
	controller, server, creds := newTestController(t)
	server.AddUser("a@b.com", "pw", "Ada")

	var transitions []State
	controller.OnChange(func(s State, _ *model.User) {
		transitions = append(transitions, s)
	})

	user, err := controller.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	require.Equal(t, "a@b.com", user.Email)
	require.Equal(t, StateAuthenticated, controller.State())
	require.Equal(t, []State{StateAuthenticated}, transitions)

	token, ok := creds.Get()
	require.True(t, ok)
	require.NotEmpty(t, token)
}

func TestLoginBadCredentials(t *testing.T) {
	controller, server, creds := newTestController(t)
	server.AddUser("a@b.com", "pw", "")

	_, err := controller.Login(context.Background(), "a@b.com", "nope")
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)

	_, ok := creds.Get()
	require.False(t, ok)
}

func TestLoginIdentityInconsistency(t *testing.T) {
	controller, server, _ := newTestController(t)
	server.AddUser("a@b.com", "pw", "")
	server.Fail(apitest.OpMe, http.StatusInternalServerError, "")

	// Login succeeds but the probe cannot resolve a user; this is a
	// distinguishable error, not a silent failure.
	_, err := controller.Login(context.Background(), "a@b.com", "pw")
	require.ErrorIs(t, err, ErrIdentityUnavailable)
}

func TestRegisterDoesNotAuthenticate(t *testing.T) {
	controller, _, creds := newTestController(t)

	user, err := controller.Register(context.Background(), model.RegisterRequest{
		Email:    "new@b.com",
		Password: "pw",
		FullName: "New User",
	})
	require.NoError(t, err)
	require.Equal(t, "new@b.com", user.Email)

	_, ok := creds.Get()
	require.False(t, ok, "register must not store a credential")
}

func TestLogoutAlwaysClearsLocally(t *testing.T) {
	controller, server, creds := newTestController(t)
	userID := server.AddUser("a@b.com", "pw", "")
	require.NoError(t, creds.Set(server.Token(userID)))
	require.Equal(t, StateAuthenticated, controller.Resolve(context.Background()))

	server.Close() // backend gone; revoke call will fail

	controller.Logout(context.Background())
	require.Equal(t, StateUnauthenticated, controller.State())
	require.Nil(t, controller.User())
	_, ok := creds.Get()
	require.False(t, ok, "local credential is forgotten even when revoke fails")
}

func TestStateString(t *testing.T) {
	require.Equal(t, "resolving", StateResolving.String())
	require.Equal(t, "authenticated", StateAuthenticated.String())
	require.Equal(t, "unauthenticated", StateUnauthenticated.String())
}
