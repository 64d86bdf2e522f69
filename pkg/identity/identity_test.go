package identity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreate_CreatesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "user-id")
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1700000000123))
	store := NewStore(path, WithClock(clock))

	id, err := store.LoadOrCreate()
	require.NoError(t, err)
	assert.True(t, IsValid(id), id)
	assert.Contains(t, id, "user_1700000000123_")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := NewStore(path).LoadOrCreate()
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestLoadOrCreate_ReadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user-id")
	require.NoError(t, os.WriteFile(path, []byte("user_1_abcdefghi\n"), 0o600))

	id, err := NewStore(path).LoadOrCreate()
	require.NoError(t, err)
	assert.Equal(t, "user_1_abcdefghi", id)
}

func TestLoadOrCreate_EmptyFileIsRegenerated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user-id")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	id, err := NewStore(path).LoadOrCreate()
	require.NoError(t, err)
	assert.True(t, IsValid(id))
}

func TestLoadOrCreate_UnreadablePath(t *testing.T) {
	dir := t.TempDir()
	_, err := NewStore(dir).LoadOrCreate()
	require.Error(t, err)
}

func TestWithClock_NilKeepsDefault(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "user-id"), WithClock(nil))

	id, err := store.LoadOrCreate()
	require.NoError(t, err)
	assert.True(t, IsValid(id), id)
}

func TestIsValid(t *testing.T) {
	assert.True(t, IsValid("user_1700000000000_k3j9x0a1z"))
	assert.False(t, IsValid("user_1700000000000_k3j9"))
	assert.False(t, IsValid("user_abc_k3j9x0a1z"))
	assert.False(t, IsValid("admin_1700000000000_k3j9x0a1z"))
	assert.False(t, IsValid("user_1700000000000_K3J9X0A1Z"))
}
