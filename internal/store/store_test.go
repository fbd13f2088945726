package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/chat-sync/internal/model"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	fb, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	sb, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "docs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sb.Close() })

	inner, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)

	return map[string]Backend{
		"file":   fb,
		"sqlite": sb,
		"cached": NewCachedBackend(inner, time.Minute, time.Minute),
	}
}

func TestBackends(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Get(ctx, "user_missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, b.Put(ctx, "user_a", []byte(`{"v":1}`)))
			require.NoError(t, b.Put(ctx, "user_a", []byte(`{"v":2}`)))

			got, err := b.Get(ctx, "user_a")
			require.NoError(t, err)
			assert.Equal(t, `{"v":2}`, string(got))

			require.NoError(t, b.Delete(ctx, "user_a"))
			require.NoError(t, b.Delete(ctx, "user_a"))
			_, err = b.Get(ctx, "user_a")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, b.Ping(ctx))
		})
	}
}

func TestFileBackendEscapesKeys(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	require.NoError(t, b.Put(context.Background(), "user_../../etc", []byte("x")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "/")
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".json"))
}

func TestFileBackendLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Put(context.Background(), "user_u1", []byte("{}")))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "user_u1.json", entries[0].Name())
}

type failingBackend struct {
	Backend
	putErr error
}

func (f *failingBackend) Put(ctx context.Context, key string, data []byte) error {
	if f.putErr != nil {
		return f.putErr
	}
	return f.Backend.Put(ctx, key, data)
}

func TestCachedBackendDoesNotCacheFailedWrites(t *testing.T) {
	ctx := context.Background()
	inner, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	fb := &failingBackend{Backend: inner}
	b := NewCachedBackend(fb, time.Minute, time.Minute)

	require.NoError(t, b.Put(ctx, "k", []byte("old")))

	fb.putErr = errors.New("disk full")
	require.Error(t, b.Put(ctx, "k", []byte("new")))

	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "old", string(got))
}

func TestCachedBackendReturnsCopies(t *testing.T) {
	ctx := context.Background()
	inner, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	b := NewCachedBackend(inner, time.Minute, time.Minute)

	require.NoError(t, b.Put(ctx, "k", []byte("abc")))
	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	got[0] = 'z'

	again, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestDocumentStore(t *testing.T) {
	ctx := context.Background()
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	s := NewDocumentStore(b)

	t.Run("missing user reads empty document", func(t *testing.T) {
		doc, err := s.Read(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, doc.Conversations)
		assert.Empty(t, doc.Folders)
		assert.NotNil(t, doc.Conversations)
	})

	t.Run("write replaces whole document", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		doc := model.NewUserDocument()
		doc.Conversations = append(doc.Conversations, model.Conversation{ID: "c1", Title: "One", Timestamp: now})
		_, err := s.Write(ctx, "u1", doc)
		require.NoError(t, err)

		doc2 := model.NewUserDocument()
		doc2.Folders = append(doc2.Folders, model.Folder{ID: "f1", Name: "Work", CreatedAt: now})
		n, err := s.Write(ctx, "u1", doc2)
		require.NoError(t, err)
		assert.Positive(t, n)

		got, err := s.Read(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, got.Conversations)
		require.Len(t, got.Folders, 1)
		assert.Equal(t, "Work", got.Folders[0].Name)
	})

	t.Run("users are isolated", func(t *testing.T) {
		got, err := s.Read(ctx, "u2")
		require.NoError(t, err)
		assert.Empty(t, got.Folders)
	})

	t.Run("corrupt document is an error", func(t *testing.T) {
		require.NoError(t, b.Put(ctx, "user_bad", []byte("{not json")))
		_, err := s.Read(ctx, "bad")
		assert.Error(t, err)
	})
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	b, err := NewFileBackend(dataDir)
	require.NoError(t, err)
	s, err := NewFileStore(b, dataDir)
	require.NoError(t, err)

	meta, err := s.ReadMetadata(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, meta.Files)

	meta.Files = append(meta.Files, model.SharedFile{ID: "f1", Name: "a.txt", Size: 3})
	require.NoError(t, s.WriteMetadata(ctx, "u1", meta))

	got, err := s.ReadMetadata(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got.Files, 1)

	n, err := s.SaveBlob("u1", "f1", strings.NewReader("abc"), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	f, err := s.OpenBlob("u1", "f1")
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, "abc", string(body))

	_, err = s.SaveBlob("u1", "big", bytes.NewReader(make([]byte, 11)), 10)
	assert.ErrorIs(t, err, ErrTooLarge)
	_, err = s.OpenBlob("u1", "big")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.RemoveBlob("u1", "f1"))
	require.NoError(t, s.RemoveBlob("u1", "f1"))
	_, err = s.OpenBlob("u1", "f1")
	assert.ErrorIs(t, err, ErrNotFound)
}
