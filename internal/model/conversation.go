// Package model defines data structures for the chat sync platform.
package model

import (
	"time"
)

// Conversation represents a conversation thread inside a user's document.
type Conversation struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Timestamp  time.Time  `json:"timestamp"`
	Messages   []Message  `json:"messages"`
	FolderID   *string    `json:"folderId"`
	UserID     string     `json:"userId"`
	ModelID    string     `json:"modelId,omitempty"`
	SharedFrom string     `json:"sharedFrom,omitempty"`
	Deleted    bool       `json:"deleted,omitempty"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`

	FolderOperations []FolderOperation `json:"folderOperations,omitempty"`
}

// FolderOperation records a move of a conversation between folders.
type FolderOperation struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// Folder groups conversations. Conversations mirrors Conversation.FolderID.
type Folder struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	CreatedAt     time.Time `json:"createdAt"`
	ParentID      *string   `json:"parentId"`
	Conversations []string  `json:"conversations"`
}

// InFolder reports whether the conversation is filed under folderID.
func (c *Conversation) InFolder(folderID string) bool {
	return c.FolderID != nil && *c.FolderID == folderID
}

// LastMessage returns the final message of the conversation, or nil.
func (c *Conversation) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
