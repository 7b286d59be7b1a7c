package credential

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	store := NewFileStore(path)

	_, ok := store.Get()
	require.False(t, ok, "missing file means logged out")

	require.NoError(t, store.Set("tok-123"))

	token, ok := store.Get()
	require.True(t, ok)
	require.Equal(t, "tok-123", token)

	// Survives a fresh store pointing at the same file.
	reopened := NewFileStore(path)
	token, ok = reopened.Get()
	require.True(t, ok)
	require.Equal(t, "tok-123", token)
}

func TestFileStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewFileStore(path)

	require.NoError(t, store.Set("tok"))
	require.NoError(t, store.Clear())

	_, ok := store.Get()
	require.False(t, ok)

	// Clearing an already-empty store is a no-op.
	require.NoError(t, store.Clear())
}

func TestFileStorePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := NewFileStore(path)
	require.NoError(t, store.Set("tok"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, ok := NewFileStore(path).Get()
	require.False(t, ok, "corrupt file reads as logged out")
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	_, ok := store.Get()
	require.False(t, ok)

	require.NoError(t, store.Set("tok"))
	token, ok := store.Get()
	require.True(t, ok)
	require.Equal(t, "tok", token)

	require.NoError(t, store.Clear())
	_, ok = store.Get()
	require.False(t, ok)
}
