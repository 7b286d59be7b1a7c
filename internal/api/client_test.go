package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-client/internal/api/apitest"
	"github.com/capitalize-ai/chat-client/internal/credential"
	"github.com/capitalize-ai/chat-client/internal/model"
	"github.com/capitalize-ai/chat-client/pkg/logger"
)

func newTestClient(t *testing.T) (*Client, *apitest.Server, *credential.MemoryStore) {
	t.Helper()
	server := apitest.NewServer()
	t.Cleanup(server.Close)

	creds := credential.NewMemoryStore()
	client := New(server.URL, 0, creds, logger.NewNop())
	return client, server, creds
}

func TestLoginReturnsToken(t *testing.T) {
	client, server, _ := newTestClient(t)
	server.AddUser("a@b.com", "pw", "")

	token, err := client.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	require.NotEmpty(t, token.AccessToken)
	require.Equal(t, "bearer", token.TokenType)
}

func TestLoginBadCredentials(t *testing.T) {
	client, server, _ := newTestClient(t)
	server.AddUser("a@b.com", "pw", "")

	_, err := client.Login(context.Background(), "a@b.com", "wrong")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "LOGIN_BAD_CREDENTIALS", apiErr.Detail.Text)
}

func TestUnauthorizedClearsCredential(t *testing.T) {
	client, _, creds := newTestClient(t)
	require.NoError(t, creds.Set("stale-token"))

	_, err := client.CurrentUser(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, ok := creds.Get()
	require.False(t, ok, "credential must be cleared after a 401")
}

func TestUnauthorizedOnPublicRouteKeepsCredential(t *testing.T) {
	client, server, creds := newTestClient(t)
	require.NoError(t, creds.Set("tok"))
	server.Fail(apitest.OpLogin, http.StatusUnauthorized, `{"detail":"bad creds"}`)

	_, err := client.Login(context.Background(), "a@b.com", "pw")
	require.Error(t, err)

	_, ok := creds.Get()
	require.True(t, ok, "401 on an unauthenticated request leaves the store alone")
}

func TestValidationErrorSequence(t *testing.T) {
	client, server, _ := newTestClient(t)
	server.Fail(apitest.OpLogin, http.StatusUnprocessableEntity,
		`{"detail":[{"msg":"field required","type":"missing"}]}`)

	_, err := client.Login(context.Background(), "", "")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.True(t, apiErr.Detail.IsValidation())
	require.Equal(t, "field required", apiErr.Detail.Fields[0].Msg)
}

func TestLogoutNoContent(t *testing.T) {
	client, server, creds := newTestClient(t)
	userID := server.AddUser("a@b.com", "pw", "")
	require.NoError(t, creds.Set(server.Token(userID)))

	require.NoError(t, client.Logout(context.Background()))
}

func TestListSessionsEmpty(t *testing.T) {
	client, server, creds := newTestClient(t)
	userID := server.AddUser("a@b.com", "pw", "")
	require.NoError(t, creds.Set(server.Token(userID)))

	sessions, err := client.ListSessions(context.Background())
	require.NoError(t, err)
	require.Empty(t, sessions)
}

func TestSendMessageUsesQueryParameter(t *testing.T) {
	client, server, creds := newTestClient(t)
	userID := server.AddUser("a@b.com", "pw", "")
	require.NoError(t, creds.Set(server.Token(userID)))
	summary := server.AddSession(userID, "gpt-x", "", nil)

	// The fake backend reads the content from the message query
	// parameter, so an echoed reply proves the wire format.
	reply, err := client.SendMessage(context.Background(), summary.ID, "hi there & more")
	require.NoError(t, err)
	require.Equal(t, model.RoleAssistant, reply.Role)
	require.Equal(t, "echo: hi there & more", reply.Content)
}

func TestSessionDetailNotFound(t *testing.T) {
	client, server, creds := newTestClient(t)
	userID := server.AddUser("a@b.com", "pw", "")
	require.NoError(t, creds.Set(server.Token(userID)))

	_, err := client.SessionDetail(context.Background(), "missing")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "Session not found", apiErr.Detail.Text)
}

func TestTransportFailureIsNotAPIError(t *testing.T) {
	creds := credential.NewMemoryStore()
	client := New("http://127.0.0.1:1", 0, creds, logger.NewNop())

	_, err := client.CurrentUser(context.Background())
	require.Error(t, err)
	var apiErr *Error
	require.False(t, errors.As(err, &apiErr), "network failures are not normalized API errors")
}
