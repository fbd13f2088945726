package model

import (
	"errors"
	"slices"
	"time"
)

var (
	ErrFileNotFound  = errors.New("file not found")
	ErrDuplicateName = errors.New("folder with this name already exists")
	ErrMoveIntoSelf  = errors.New("cannot move folder into itself")
	ErrUnknownItem   = errors.New("unknown item type")
)

// SharedFile is an uploaded file in a user's shared-files namespace.
type SharedFile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	Type         string    `json:"type"`
	UploaderID   string    `json:"uploaderId"`
	UploaderName string    `json:"uploaderName"`
	UploadDate   time.Time `json:"uploadDate"`
	FolderID     *string   `json:"folderId"`
}

// SharedFolder groups shared files.
type SharedFolder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	ParentID  *string   `json:"parentId"`
}

// FileMetadata is the per-user shared-files document.
type FileMetadata struct {
	Files   []SharedFile   `json:"files"`
	Folders []SharedFolder `json:"folders"`
}

// NewFileMetadata returns empty metadata with non-nil collections.
func NewFileMetadata() *FileMetadata {
	return &FileMetadata{
		Files:   []SharedFile{},
		Folders: []SharedFolder{},
	}
}

// Normalize replaces nil collections with empty ones.
func (m *FileMetadata) Normalize() {
	if m.Files == nil {
		m.Files = []SharedFile{}
	}
	if m.Folders == nil {
		m.Folders = []SharedFolder{}
	}
}

// FindFile returns the file with id, or nil.
func (m *FileMetadata) FindFile(id string) *SharedFile {
	for i := range m.Files {
		if m.Files[i].ID == id {
			return &m.Files[i]
		}
	}
	return nil
}

// FindFolder returns the folder with id, or nil.
func (m *FileMetadata) FindFolder(id string) *SharedFolder {
	for i := range m.Folders {
		if m.Folders[i].ID == id {
			return &m.Folders[i]
		}
	}
	return nil
}

// AddFolder appends f unless a sibling with the same name exists.
func (m *FileMetadata) AddFolder(f SharedFolder) error {
	for _, existing := range m.Folders {
		if existing.Name == f.Name && samePtr(existing.ParentID, f.ParentID) {
			return ErrDuplicateName
		}
	}
	if f.ParentID != nil {
		f.Path = "/" + *f.ParentID + "/" + f.Name
	} else {
		f.Path = "/" + f.Name
	}
	m.Folders = append(m.Folders, f)
	return nil
}

// RemoveFile deletes file id from the metadata and returns it.
func (m *FileMetadata) RemoveFile(id string) (SharedFile, error) {
	idx := slices.IndexFunc(m.Files, func(f SharedFile) bool { return f.ID == id })
	if idx < 0 {
		return SharedFile{}, ErrFileNotFound
	}
	removed := m.Files[idx]
	m.Files = slices.Delete(m.Files, idx, idx+1)
	return removed, nil
}

// RemoveFolder deletes folder id together with the files directly inside it,
// returning the removed files so their blobs can be cleaned up.
func (m *FileMetadata) RemoveFolder(id string) ([]SharedFile, error) {
	idx := slices.IndexFunc(m.Folders, func(f SharedFolder) bool { return f.ID == id })
	if idx < 0 {
		return nil, ErrFolderNotFound
	}
	m.Folders = slices.Delete(m.Folders, idx, idx+1)

	var removed []SharedFile
	kept := m.Files[:0]
	for _, f := range m.Files {
		if f.FolderID != nil && *f.FolderID == id {
			removed = append(removed, f)
			continue
		}
		kept = append(kept, f)
	}
	m.Files = kept
	return removed, nil
}

// MoveItem reparents a file or folder. itemType is "file" or "folder".
func (m *FileMetadata) MoveItem(itemID, itemType string, target *string) error {
	switch itemType {
	case "file":
		f := m.FindFile(itemID)
		if f == nil {
			return ErrFileNotFound
		}
		f.FolderID = target
	case "folder":
		if target != nil && *target == itemID {
			return ErrMoveIntoSelf
		}
		f := m.FindFolder(itemID)
		if f == nil {
			return ErrFolderNotFound
		}
		f.ParentID = target
	default:
		return ErrUnknownItem
	}
	return nil
}

func samePtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
