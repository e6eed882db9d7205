package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileSlotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	slot := NewFileSlot(path)

	_, ok, err := slot.Get(KeyAccessToken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, slot.Set(KeyAccessToken, "T1"))
	require.NoError(t, slot.Set(KeyUser, `{"id":1}`))

	v, ok, err := slot.Get(KeyAccessToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "T1", v)

	// A fresh slot over the same file sees persisted values.
	again := NewFileSlot(path)
	v, ok, err = again.Get(KeyUser)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"id":1}`, v)
}

func TestFileSlotDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	slot := NewFileSlot(path)

	require.NoError(t, slot.Set(KeyAccessToken, "T1"))
	require.NoError(t, slot.Delete(KeyAccessToken))

	_, ok, err := slot.Get(KeyAccessToken)
	require.NoError(t, err)
	require.False(t, ok)

	// Deleting an absent key is not an error.
	require.NoError(t, slot.Delete(KeyAccessToken))
	require.NoError(t, slot.Delete("never-set"))
}

func TestFileSlotCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "session.json")
	slot := NewFileSlot(path)
	require.NoError(t, slot.Set(KeyAccessToken, "T1"))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestFileSlotCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	slot := NewFileSlot(path)
	_, _, err := slot.Get(KeyAccessToken)
	require.Error(t, err)
}

func TestMemorySlot(t *testing.T) {
	slot := NewMemorySlot()

	_, ok, err := slot.Get("k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, slot.Set("k", "v"))
	v, ok, err := slot.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	require.NoError(t, slot.Delete("k"))
	_, ok, err = slot.Get("k")
	require.NoError(t, err)
	require.False(t, ok)
}
