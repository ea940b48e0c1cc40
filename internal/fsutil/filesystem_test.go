package fsutil

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFileSystem(t *testing.T) {
	t.Parallel()

	t.Run("write then read round-trips", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryFileSystem()
		require.NoError(t, m.WriteFile("refs/references.json", []byte(`{"a":1}`), 0o644))
		data, err := m.ReadFile("refs/references.json")
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(data))
	})

	t.Run("read of missing file is ErrNotExist", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryFileSystem()
		_, err := m.ReadFile("nope.json")
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("read returns a copy", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryFileSystem()
		require.NoError(t, m.WriteFile("f", []byte("abc"), 0o644))
		data, err := m.ReadFile("f")
		require.NoError(t, err)
		data[0] = 'x'
		again, err := m.ReadFile("f")
		require.NoError(t, err)
		assert.Equal(t, "abc", string(again))
	})

	t.Run("rename replaces target", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryFileSystem()
		require.NoError(t, m.WriteFile("a.tmp", []byte("new"), 0o644))
		require.NoError(t, m.WriteFile("a", []byte("old"), 0o644))
		require.NoError(t, m.Rename("a.tmp", "a"))
		data, err := m.ReadFile("a")
		require.NoError(t, err)
		assert.Equal(t, "new", string(data))
		assert.False(t, m.Exists("a.tmp"))
	})

	t.Run("rename of missing source fails", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryFileSystem()
		assert.ErrorIs(t, m.Rename("ghost", "dest"), fs.ErrNotExist)
	})

	t.Run("mkdirall marks parents", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryFileSystem()
		require.NoError(t, m.MkdirAll("a/b/c", 0o755))
		assert.True(t, m.Exists("a/b/c"))
		assert.True(t, m.Exists("a/b"))
		assert.True(t, m.Exists("a"))
	})
}
