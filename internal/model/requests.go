package model

// ShareChatRequest shares a conversation into another user's Inbox. The
// sender is always the caller.
type ShareChatRequest struct {
	RecipientID string        `json:"recipientId" validate:"required,docid"`
	Chat        *Conversation `json:"chat" validate:"required"`
}

// ShareChatResponse is returned by a successful share.
type ShareChatResponse struct {
	Success      bool          `json:"success"`
	Conversation *Conversation `json:"conversation"`
}

// RenameRequest renames a conversation or folder.
type RenameRequest struct {
	Title string `json:"title" validate:"required,max=256"`
}

// MoveConversationRequest files a conversation. A null folderId
// uncategorizes it.
type MoveConversationRequest struct {
	FolderID *string `json:"folderId" validate:"omitempty,docid"`
}

// CreateFolderRequest creates a conversation or shared-file folder.
type CreateFolderRequest struct {
	Name     string  `json:"name" validate:"required,max=256"`
	ParentID *string `json:"parentId" validate:"omitempty,docid"`
}

// DeleteFileRequest deletes a shared file.
type DeleteFileRequest struct {
	FileID string `json:"fileId" validate:"required,docid"`
}

// DeleteFolderRequest deletes a shared folder.
type DeleteFolderRequest struct {
	FolderID string `json:"folderId" validate:"required,docid"`
}

// MoveItemRequest reparents a shared file or folder.
type MoveItemRequest struct {
	ItemID         string  `json:"itemId" validate:"required,docid"`
	ItemType       string  `json:"itemType" validate:"required,oneof=file folder"`
	TargetFolderID *string `json:"targetFolderId" validate:"omitempty,docid"`
}

// SuccessResponse is the body of mutations with nothing else to report.
type SuccessResponse struct {
	Success bool `json:"success"`
}
