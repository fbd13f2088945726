package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/capitalize-ai/chat-sync/internal/model"
)

// FileStore keeps shared-file metadata in a Backend and file contents on
// local disk under <root>/shared-files/<user>/<file>.
type FileStore struct {
	backend Backend
	root    string
}

// NewFileStore creates a file store. Blobs are written below dataDir.
func NewFileStore(backend Backend, dataDir string) (*FileStore, error) {
	root := filepath.Join(dataDir, "shared-files")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create shared files dir: %w", err)
	}
	return &FileStore{backend: backend, root: root}, nil
}

// ReadMetadata returns the shared-file metadata of userID, empty if none.
func (s *FileStore) ReadMetadata(ctx context.Context, userID string) (*model.FileMetadata, error) {
	data, err := s.backend.Get(ctx, filesKey(userID))
	if errors.Is(err, ErrNotFound) {
		return model.NewFileMetadata(), nil
	}
	if err != nil {
		return nil, err
	}

	var meta model.FileMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode file metadata for %s: %w", userID, err)
	}
	meta.Normalize()
	return &meta, nil
}

// WriteMetadata replaces the shared-file metadata of userID.
func (s *FileStore) WriteMetadata(ctx context.Context, userID string, meta *model.FileMetadata) error {
	meta.Normalize()
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode file metadata: %w", err)
	}
	return s.backend.Put(ctx, filesKey(userID), data)
}

func (s *FileStore) blobPath(userID, fileID string) string {
	return filepath.Join(s.root, url.PathEscape(userID), url.PathEscape(fileID))
}

// SaveBlob copies r into the blob for fileID, reading at most limit bytes.
// It returns the number of bytes written.
func (s *FileStore) SaveBlob(userID, fileID string, r io.Reader, limit int64) (int64, error) {
	path := s.blobPath(userID, fileID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create user files dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create blob: %w", err)
	}

	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > limit {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		return 0, err
	}
	return n, nil
}

// OpenBlob opens the blob for fileID.
func (s *FileStore) OpenBlob(userID, fileID string) (*os.File, error) {
	f, err := os.Open(s.blobPath(userID, fileID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// RemoveBlob deletes the blob for fileID. A missing blob is not an error.
func (s *FileStore) RemoveBlob(userID, fileID string) error {
	err := os.Remove(s.blobPath(userID, fileID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ErrTooLarge is returned by SaveBlob when the input exceeds its limit.
var ErrTooLarge = errors.New("file exceeds upload limit")
