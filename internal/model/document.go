package model

import (
	"errors"
	"slices"
	"time"
)

// InboxFolderID is the folder that receives conversations shared by others.
const InboxFolderID = "inbox"

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrFolderNotFound       = errors.New("folder not found")
	ErrDuplicateID          = errors.New("duplicate id")
)

// UserDocument is the unit of synchronization: everything one user sees in
// the sidebar. It is always read and written whole.
type UserDocument struct {
	Conversations []Conversation `json:"conversations"`
	Folders       []Folder       `json:"folders"`
}

// NewUserDocument returns an empty document with non-nil collections.
func NewUserDocument() *UserDocument {
	return &UserDocument{
		Conversations: []Conversation{},
		Folders:       []Folder{},
	}
}

// Normalize replaces nil collections with empty ones so the document always
// encodes arrays rather than null.
func (d *UserDocument) Normalize() {
	if d.Conversations == nil {
		d.Conversations = []Conversation{}
	}
	if d.Folders == nil {
		d.Folders = []Folder{}
	}
	for i := range d.Conversations {
		if d.Conversations[i].Messages == nil {
			d.Conversations[i].Messages = []Message{}
		}
	}
	for i := range d.Folders {
		if d.Folders[i].Conversations == nil {
			d.Folders[i].Conversations = []string{}
		}
	}
}

// Clone returns a deep copy of the document's collections. Message metadata
// pointers are shared; they are never mutated in place.
func (d *UserDocument) Clone() *UserDocument {
	out := &UserDocument{
		Conversations: make([]Conversation, len(d.Conversations)),
		Folders:       make([]Folder, len(d.Folders)),
	}
	for i, c := range d.Conversations {
		c.Messages = slices.Clone(c.Messages)
		if c.Messages == nil {
			c.Messages = []Message{}
		}
		c.FolderOperations = slices.Clone(c.FolderOperations)
		if c.FolderID != nil {
			id := *c.FolderID
			c.FolderID = &id
		}
		out.Conversations[i] = c
	}
	for i, f := range d.Folders {
		f.Conversations = slices.Clone(f.Conversations)
		if f.Conversations == nil {
			f.Conversations = []string{}
		}
		if f.ParentID != nil {
			id := *f.ParentID
			f.ParentID = &id
		}
		out.Folders[i] = f
	}
	return out
}

// FindConversation returns the conversation with id, or nil.
func (d *UserDocument) FindConversation(id string) *Conversation {
	for i := range d.Conversations {
		if d.Conversations[i].ID == id {
			return &d.Conversations[i]
		}
	}
	return nil
}

// FindFolder returns the folder with id, or nil.
func (d *UserDocument) FindFolder(id string) *Folder {
	for i := range d.Folders {
		if d.Folders[i].ID == id {
			return &d.Folders[i]
		}
	}
	return nil
}

// ActiveConversations returns the conversations that are not soft-deleted.
func (d *UserDocument) ActiveConversations() []Conversation {
	out := make([]Conversation, 0, len(d.Conversations))
	for _, c := range d.Conversations {
		if !c.Deleted {
			out = append(out, c)
		}
	}
	return out
}

// EnsureInbox returns the Inbox folder, creating it if absent.
func (d *UserDocument) EnsureInbox(now time.Time) *Folder {
	if f := d.FindFolder(InboxFolderID); f != nil {
		return f
	}
	d.Folders = append(d.Folders, Folder{
		ID:            InboxFolderID,
		Name:          "Inbox",
		CreatedAt:     now,
		Conversations: []string{},
	})
	return &d.Folders[len(d.Folders)-1]
}

// AddConversation appends conv and records it in its folder's membership.
func (d *UserDocument) AddConversation(conv Conversation) error {
	if d.FindConversation(conv.ID) != nil {
		return ErrDuplicateID
	}
	if conv.FolderID != nil {
		f := d.FindFolder(*conv.FolderID)
		if f == nil {
			return ErrFolderNotFound
		}
		f.Conversations = appendUnique(f.Conversations, conv.ID)
	}
	if conv.Messages == nil {
		conv.Messages = []Message{}
	}
	d.Conversations = append(d.Conversations, conv)
	return nil
}

// RenameConversation sets the title of conversation id.
func (d *UserDocument) RenameConversation(id, title string, now time.Time) error {
	c := d.FindConversation(id)
	if c == nil {
		return ErrConversationNotFound
	}
	c.Title = title
	c.Timestamp = now
	return nil
}

// MoveConversation files conversation id under folderID, or uncategorizes it
// when folderID is nil. Both sides of the membership are updated.
func (d *UserDocument) MoveConversation(id string, folderID *string, now time.Time) error {
	c := d.FindConversation(id)
	if c == nil {
		return ErrConversationNotFound
	}
	var target *Folder
	if folderID != nil {
		if target = d.FindFolder(*folderID); target == nil {
			return ErrFolderNotFound
		}
	}
	d.detach(c)
	if target != nil {
		target.Conversations = appendUnique(target.Conversations, id)
		fid := target.ID
		c.FolderID = &fid
	}
	c.FolderOperations = append(c.FolderOperations, FolderOperation{Type: "move", Timestamp: now})
	c.Timestamp = now
	return nil
}

// SoftDeleteConversation marks conversation id deleted and removes it from
// its folder. The conversation stays in the document for statistics.
func (d *UserDocument) SoftDeleteConversation(id string, now time.Time) error {
	c := d.FindConversation(id)
	if c == nil {
		return ErrConversationNotFound
	}
	d.detach(c)
	c.Deleted = true
	c.DeletedAt = &now
	return nil
}

// AppendMessage adds msg to the end of conversation id.
func (d *UserDocument) AppendMessage(id string, msg Message, now time.Time) error {
	c := d.FindConversation(id)
	if c == nil {
		return ErrConversationNotFound
	}
	c.Messages = append(c.Messages, msg)
	c.Timestamp = now
	return nil
}

// CreateFolder appends f. Folder ids are unique within a document.
func (d *UserDocument) CreateFolder(f Folder) error {
	if d.FindFolder(f.ID) != nil {
		return ErrDuplicateID
	}
	if f.Conversations == nil {
		f.Conversations = []string{}
	}
	d.Folders = append(d.Folders, f)
	return nil
}

// RenameFolder sets the name of folder id.
func (d *UserDocument) RenameFolder(id, name string) error {
	f := d.FindFolder(id)
	if f == nil {
		return ErrFolderNotFound
	}
	f.Name = name
	return nil
}

// DeleteFolder removes folder id. Its conversations become uncategorized.
func (d *UserDocument) DeleteFolder(id string) error {
	idx := slices.IndexFunc(d.Folders, func(f Folder) bool { return f.ID == id })
	if idx < 0 {
		return ErrFolderNotFound
	}
	for i := range d.Conversations {
		if d.Conversations[i].InFolder(id) {
			d.Conversations[i].FolderID = nil
		}
	}
	d.Folders = slices.Delete(d.Folders, idx, idx+1)
	return nil
}

func (d *UserDocument) detach(c *Conversation) {
	if c.FolderID != nil {
		if f := d.FindFolder(*c.FolderID); f != nil {
			f.Conversations = slices.DeleteFunc(f.Conversations, func(id string) bool { return id == c.ID })
		}
	}
	c.FolderID = nil
}

func appendUnique(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
