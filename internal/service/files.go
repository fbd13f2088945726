package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-sync/internal/model"
	"github.com/capitalize-ai/chat-sync/internal/store"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
	"github.com/capitalize-ai/chat-sync/pkg/metrics"
)

// FileStore persists shared-file metadata and file contents.
type FileStore interface {
	ReadMetadata(ctx context.Context, userID string) (*model.FileMetadata, error)
	WriteMetadata(ctx context.Context, userID string, meta *model.FileMetadata) error
	SaveBlob(userID, fileID string, r io.Reader, limit int64) (int64, error)
	OpenBlob(userID, fileID string) (*os.File, error)
	RemoveBlob(userID, fileID string) error
}

// Upload describes one file being added to a user's shared files.
type Upload struct {
	Name         string
	Type         string
	FolderID     *string
	UploaderName string
	Body         io.Reader
}

// FileService manages a user's shared files and folders. Each successful
// change is pushed to the user's subscribers as a files event.
type FileService struct {
	files    FileStore
	notifier Notifier
	maxSize  int64
	logger   *logger.Logger
	locks    *keyedMutex
	now      func() time.Time
}

// NewFileService creates a file service accepting uploads up to maxSize bytes.
func NewFileService(files FileStore, notifier Notifier, maxSize int64, log *logger.Logger) *FileService {
	if log == nil {
		log = logger.NewNop()
	}
	return &FileService{
		files:    files,
		notifier: notifier,
		maxSize:  maxSize,
		logger:   log,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// List returns the shared-file metadata of userID.
func (s *FileService) List(ctx context.Context, userID string) (*model.FileMetadata, error) {
	meta, err := s.files.ReadMetadata(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read file metadata: %w", err)
	}
	return meta, nil
}

// Upload stores the file contents and records it in the metadata.
func (s *FileService) Upload(ctx context.Context, userID string, up Upload) (*model.SharedFile, error) {
	if strings.TrimSpace(up.Name) == "" || up.Body == nil {
		return nil, fmt.Errorf("%w: no file provided", ErrInvalidInput)
	}

	file := model.SharedFile{
		ID:           uuid.NewString(),
		Name:         up.Name,
		Type:         up.Type,
		UploaderID:   userID,
		UploaderName: up.UploaderName,
		UploadDate:   s.now(),
		FolderID:     up.FolderID,
	}

	size, err := s.files.SaveBlob(userID, file.ID, up.Body, s.maxSize)
	if errors.Is(err, store.ErrTooLarge) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}
	file.Size = size

	err = s.mutate(ctx, userID, func(meta *model.FileMetadata) error {
		if file.FolderID != nil && meta.FindFolder(*file.FolderID) == nil {
			return model.ErrFolderNotFound
		}
		meta.Files = append(meta.Files, file)
		return nil
	})
	if err != nil {
		if rmErr := s.files.RemoveBlob(userID, file.ID); rmErr != nil {
			s.logger.Warn("failed to remove orphaned blob", zap.String("file_id", file.ID), zap.Error(rmErr))
		}
		return nil, err
	}
	return &file, nil
}

// Open returns the file record and an open handle to its contents.
func (s *FileService) Open(ctx context.Context, userID, fileID string) (*model.SharedFile, *os.File, error) {
	meta, err := s.List(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	file := meta.FindFile(fileID)
	if file == nil {
		return nil, nil, classify(model.ErrFileNotFound)
	}

	f, err := s.files.OpenBlob(userID, fileID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, classify(model.ErrFileNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, f, nil
}

// Delete removes a file from the caller's shared space.
func (s *FileService) Delete(ctx context.Context, userID, fileID string) error {
	err := s.mutate(ctx, userID, func(meta *model.FileMetadata) error {
		file := meta.FindFile(fileID)
		if file == nil {
			return model.ErrFileNotFound
		}
		_, err := meta.RemoveFile(fileID)
		return err
	})
	if err != nil {
		return err
	}

	s.removeBlobs(userID, fileID)
	return nil
}

// CreateFolder adds a shared folder. Sibling names must be unique.
func (s *FileService) CreateFolder(ctx context.Context, userID, name string, parentID *string) (*model.SharedFolder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is required", ErrInvalidInput)
	}

	var folder model.SharedFolder
	err := s.mutate(ctx, userID, func(meta *model.FileMetadata) error {
		if parentID != nil && meta.FindFolder(*parentID) == nil {
			return model.ErrFolderNotFound
		}
		if err := meta.AddFolder(model.SharedFolder{
			ID:        uuid.NewString(),
			Name:      name,
			CreatedBy: userID,
			CreatedAt: s.now(),
			ParentID:  parentID,
		}); err != nil {
			return err
		}
		folder = meta.Folders[len(meta.Folders)-1]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// DeleteFolder removes a folder and the files directly inside it.
func (s *FileService) DeleteFolder(ctx context.Context, userID, folderID string) error {
	var removed []model.SharedFile
	err := s.mutate(ctx, userID, func(meta *model.FileMetadata) error {
		folder := meta.FindFolder(folderID)
		if folder == nil {
			return model.ErrFolderNotFound
		}
		var err error
		removed, err = meta.RemoveFolder(folderID)
		return err
	})
	if err != nil {
		return err
	}

	ids := make([]string, len(removed))
	for i, f := range removed {
		ids[i] = f.ID
	}
	s.removeBlobs(userID, ids...)
	return nil
}

// Move reparents a file or folder. A nil target moves it to the root.
func (s *FileService) Move(ctx context.Context, userID, itemID, itemType string, target *string) error {
	return s.mutate(ctx, userID, func(meta *model.FileMetadata) error {
		if target != nil && meta.FindFolder(*target) == nil {
			return model.ErrFolderNotFound
		}
		return meta.MoveItem(itemID, itemType, target)
	})
}

// mutate applies fn to the metadata of userID, writes it back and notifies.
func (s *FileService) mutate(ctx context.Context, userID string, fn func(meta *model.FileMetadata) error) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	meta, err := s.files.ReadMetadata(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to read file metadata: %w", err)
	}
	if err := fn(meta); err != nil {
		return classify(err)
	}

	err = s.files.WriteMetadata(ctx, userID, meta)
	metrics.RecordDocumentWrite("files", err)
	if err != nil {
		s.logger.Error("file metadata write failed", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to write file metadata: %w", err)
	}

	s.notifier.NotifyFiles(userID, meta)
	return nil
}

func (s *FileService) removeBlobs(userID string, fileIDs ...string) {
	for _, id := range fileIDs {
		if err := s.files.RemoveBlob(userID, id); err != nil {
			s.logger.Warn("failed to remove file contents",
				zap.String("user_id", userID),
				zap.String("file_id", id),
				zap.Error(err),
			)
		}
	}
}
