package model

import (
	"time"
)

// EventType discriminates sync stream events.
type EventType string

const (
	EventTypeConnected EventType = "connected"
	EventTypePing      EventType = "ping"
	EventTypeUpdate    EventType = "update"
	EventTypeFiles     EventType = "files"
)

// SyncEvent is one server push on the sync stream. Data carries the full
// document for update events and the full file metadata for files events.
type SyncEvent struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// ConnectedEvent is pushed once per connection, before any update.
func ConnectedEvent() SyncEvent {
	return SyncEvent{Type: EventTypeConnected}
}

// PingEvent is the keepalive event.
func PingEvent() SyncEvent {
	return SyncEvent{Type: EventTypePing}
}

// UpdateEvent carries the complete current document.
func UpdateEvent(doc *UserDocument) SyncEvent {
	return SyncEvent{Type: EventTypeUpdate, Data: doc}
}

// FilesEvent carries the complete shared-file metadata of a user.
func FilesEvent(meta *FileMetadata) SyncEvent {
	return SyncEvent{Type: EventTypeFiles, Data: meta}
}

// DocumentSaved summarises a durable document write for the change feed.
type DocumentSaved struct {
	UserID        string    `json:"userId"`
	Source        string    `json:"source"`
	Conversations int       `json:"conversations"`
	Folders       int       `json:"folders"`
	SavedAt       time.Time `json:"savedAt"`
}
