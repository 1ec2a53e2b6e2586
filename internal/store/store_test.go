package store_test

import (
	"path/filepath"
	"testing"

	"github.com/SpatiumPortae/ferry/internal/store"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*store.Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s := store.New(fs, "transferred-files")
	require.NoError(t, s.Init())
	return s, fs
}

func TestSave(t *testing.T) {
	t.Run("writes content", func(t *testing.T) {
		s, fs := newStore(t)
		require.NoError(t, s.Save("a.txt", []byte("hi")))
		b, err := afero.ReadFile(fs, filepath.Join("transferred-files", "a.txt"))
		require.NoError(t, err)
		assert.Equal(t, []byte("hi"), b)
		assert.True(t, s.Exists("a.txt"))
	})
	t.Run("overwrite keeps one file", func(t *testing.T) {
		s, fs := newStore(t)
		require.NoError(t, s.Save("dup", []byte("first version")))
		require.NoError(t, s.Save("dup", []byte("second")))

		b, err := afero.ReadFile(fs, filepath.Join("transferred-files", "dup"))
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), b)

		entries, err := afero.ReadDir(fs, "transferred-files")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "dup", entries[0].Name())
	})
	t.Run("zero byte file", func(t *testing.T) {
		s, fs := newStore(t)
		require.NoError(t, s.Save("empty", []byte{}))
		info, err := fs.Stat(filepath.Join("transferred-files", "empty"))
		require.NoError(t, err)
		assert.Zero(t, info.Size())
	})
	t.Run("failed save leaves old file intact", func(t *testing.T) {
		s, fs := newStore(t)
		require.NoError(t, s.Save("keep", []byte("old")))

		ro := store.New(afero.NewReadOnlyFs(fs), "transferred-files")
		assert.Error(t, ro.Save("keep", []byte("new")))

		b, err := afero.ReadFile(fs, filepath.Join("transferred-files", "keep"))
		require.NoError(t, err)
		assert.Equal(t, []byte("old"), b)
	})
}

func TestUnsafeNames(t *testing.T) {
	for _, name := range []string{
		"",
		".",
		"..",
		"../evil",
		"sub/file",
		`..\evil`,
		"/etc/passwd",
		"nul\x00byte",
		".ferry-partial-123",
	} {
		t.Run(name, func(t *testing.T) {
			s, fs := newStore(t)
			err := s.Save(name, []byte("x"))
			assert.ErrorIs(t, err, store.ErrUnsafeFileName)

			entries, err := afero.ReadDir(fs, "transferred-files")
			require.NoError(t, err)
			assert.Empty(t, entries)
			exists, err := afero.Exists(fs, "evil")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
	t.Run("plain names pass", func(t *testing.T) {
		for _, name := range []string{"a.txt", "..hidden", "x..y", "with space.md", ".ferry-partial"} {
			assert.NoError(t, store.ValidateName(name), name)
		}
	})
}
