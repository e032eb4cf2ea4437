// manager_test.go - Tests for log file storage
package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/logvision/backend/internal/models"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) (*LocalStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	store, err := NewStore(fs, "/data/uploads")
	require.NoError(t, err)
	return store, fs
}

func TestNewLocalStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	info, err := store.Save("a.log", strings.NewReader("hello"))
	require.NoError(t, err)

	text, err := store.ReadText(info.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestLocalStore_Save(t *testing.T) {
	store, fs := createTestStore(t)

	info, err := store.Save("app.log", strings.NewReader("2024-01-01 10:00:00 cpu=5"))
	require.NoError(t, err)

	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "app.log", info.Name)
	assert.Equal(t, int64(25), info.Size)
	assert.Equal(t, models.FileUploaded, info.Status)
	assert.WithinDuration(t, time.Now(), info.UploadedAt, time.Minute)

	exists, err := afero.Exists(fs, filepath.Join("/data/uploads", info.ID))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalStore_Get(t *testing.T) {
	store, _ := createTestStore(t)

	t.Run("returns a copy", func(t *testing.T) {
		info, err := store.Save("a.log", strings.NewReader("x"))
		require.NoError(t, err)

		got, err := store.Get(info.ID)
		require.NoError(t, err)
		got.Name = "changed"

		again, err := store.Get(info.ID)
		require.NoError(t, err)
		assert.Equal(t, "a.log", again.Name)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.Get("missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestLocalStore_List(t *testing.T) {
	store, _ := createTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := store.Save(fmt.Sprintf("f%d.log", i), strings.NewReader("x"))
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	all, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "f2.log", all[0].Name, "newest first")

	limited, err := store.List(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestLocalStore_Delete(t *testing.T) {
	store, fs := createTestStore(t)

	info, err := store.Save("a.log", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(info.ID))
	exists, _ := afero.Exists(fs, filepath.Join("/data/uploads", info.ID))
	assert.False(t, exists)

	assert.ErrorIs(t, store.Delete(info.ID), ErrNotFound)
	_, err = store.ReadText(info.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_RenameAndStatus(t *testing.T) {
	store, _ := createTestStore(t)

	info, err := store.Save("a.log", strings.NewReader("x"))
	require.NoError(t, err)

	renamed, err := store.Rename(info.ID, "b.log")
	require.NoError(t, err)
	assert.Equal(t, "b.log", renamed.Name)

	require.NoError(t, store.SetStatus(info.ID, models.FileAnalyzed))
	got, _ := store.Get(info.ID)
	assert.Equal(t, models.FileAnalyzed, got.Status)

	_, err = store.Rename("missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.SetStatus("missing", models.FileError), ErrNotFound)
}

func TestLocalStore_ChunkedUpload(t *testing.T) {
	store, fs := createTestStore(t)

	chunks := []string{"line one\n", "line two\n", "line three\n"}
	for i, c := range chunks {
		require.NoError(t, store.SaveChunk("up-1", i, strings.NewReader(c)))
	}

	info, err := store.CompleteChunkedUpload("up-1", "big.log", len(chunks))
	require.NoError(t, err)
	assert.Equal(t, int64(len(strings.Join(chunks, ""))), info.Size)

	text, err := store.ReadText(info.ID)
	require.NoError(t, err)
	assert.Equal(t, strings.Join(chunks, ""), text)

	exists, _ := afero.DirExists(fs, "/data/uploads/chunks/up-1")
	assert.False(t, exists, "chunks are cleaned up")

	t.Run("missing chunk", func(t *testing.T) {
		require.NoError(t, store.SaveChunk("up-2", 0, strings.NewReader("a")))
		_, err := store.CompleteChunkedUpload("up-2", "broken.log", 2)
		assert.Error(t, err)
	})
}

func TestLocalStore_ChunkedUploadRejectsTraversal(t *testing.T) {
	store, fs := createTestStore(t)

	kept, err := store.Save("kept.log", strings.NewReader("keep me"))
	require.NoError(t, err)

	for _, id := range []string{"", ".", "..", "../x", "a/b", `a\b`, "/abs"} {
		assert.ErrorIs(t, store.SaveChunk(id, 0, strings.NewReader("x")), ErrInvalidUploadID, id)
		_, err := store.CompleteChunkedUpload(id, "evil.log", 1)
		assert.ErrorIs(t, err, ErrInvalidUploadID, id)
	}

	text, err := store.ReadText(kept.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep me", text)
	exists, _ := afero.DirExists(fs, "/data/uploads")
	assert.True(t, exists)
}

func TestValidUploadID(t *testing.T) {
	assert.True(t, ValidUploadID("test-upload-v1"))
	assert.True(t, ValidUploadID("0b5e6f2c-7d1a-4c4e-9a57-2f1d3b8e6c90"))
	assert.True(t, ValidUploadID("file..part"))
	assert.False(t, ValidUploadID(".."))
	assert.False(t, ValidUploadID("."))
	assert.False(t, ValidUploadID("a/.."))
}
