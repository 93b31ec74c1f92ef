package filestore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOSStoreWriteReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewOSStore(root)

	require.False(t, store.Exists("a/b.txt"))
	require.NoError(t, store.Write("a/b.txt", []byte("hello")))
	require.True(t, store.Exists("a/b.txt"))

	data, err := store.Read("a/b.txt")
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestOSStoreRemove(t *testing.T) {
	root := t.TempDir()
	store := NewOSStore(root)
	require.NoError(t, store.Write("f.txt", []byte("x")))
	require.NoError(t, store.Remove("f.txt"))
	require.False(t, store.Exists("f.txt"))
}

func TestOSStoreReadMissingFileErrors(t *testing.T) {
	root := t.TempDir()
	store := NewOSStore(root)
	_, err := store.Read("missing.txt")
	require.Error(t, err)
}
