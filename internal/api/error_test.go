package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeStringDetail(t *testing.T) {
	err := normalizeError(http.StatusUnauthorized, []byte(`{"detail":"bad creds"}`))
	require.Equal(t, http.StatusUnauthorized, err.Status)
	require.Equal(t, "bad creds", err.Detail.Text)
	require.False(t, err.Detail.IsValidation())
	require.Equal(t, "bad creds", err.Error())
	require.True(t, err.Unauthorized())
}

func TestNormalizeValidationSequence(t *testing.T) {
	body := `{"detail":[{"loc":["body","email"],"msg":"field required","type":"missing"},{"msg":"value too short","type":"value_error"}]}`
	err := normalizeError(http.StatusUnprocessableEntity, []byte(body))

	require.True(t, err.Detail.IsValidation())
	require.Len(t, err.Detail.Fields, 2)
	require.Equal(t, "field required", err.Detail.Fields[0].Msg)
	require.Equal(t, "missing", err.Detail.Fields[0].Type)
	require.Equal(t, []any{"body", "email"}, err.Detail.Fields[0].Loc)

	// Flattening joins the messages.
	require.Equal(t, "field required, value too short", err.Error())
}

func TestNormalizeUnparseableBody(t *testing.T) {
	err := normalizeError(http.StatusBadGateway, []byte("<html>oops</html>"))
	require.Equal(t, "HTTP error 502: Bad Gateway", err.Detail.Text)
}

func TestNormalizeEmptyBody(t *testing.T) {
	err := normalizeError(http.StatusInternalServerError, nil)
	require.Equal(t, "HTTP error 500: Internal Server Error", err.Detail.Text)
}

func TestNormalizeUnknownStatus(t *testing.T) {
	err := normalizeError(599, []byte("junk"))
	require.Equal(t, "HTTP error 599: Unknown error", err.Detail.Text)
}

func TestNormalizeMissingDetailField(t *testing.T) {
	// A parsed body without a detail field becomes the payload itself,
	// serialized back to a string.
	err := normalizeError(http.StatusBadRequest, []byte(`{"error":"nope"}`))
	require.Equal(t, `{"error":"nope"}`, err.Detail.Text)
}

func TestNormalizeNonStringDetail(t *testing.T) {
	err := normalizeError(http.StatusBadRequest, []byte(`{"detail":{"code":7}}`))
	require.Equal(t, `{"code":7}`, err.Detail.Text)
}

func TestNormalizeMalformedSequence(t *testing.T) {
	// Sequence entries missing msg/type are not validation errors; the
	// payload is serialized instead.
	err := normalizeError(http.StatusBadRequest, []byte(`{"detail":[{"oops":true}]}`))
	require.False(t, err.Detail.IsValidation())
	require.Equal(t, `[{"oops":true}]`, err.Detail.Text)
}
