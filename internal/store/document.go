package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/capitalize-ai/chat-sync/internal/model"
)

// DocumentStore reads and writes per-user chat documents.
type DocumentStore struct {
	backend Backend
}

// NewDocumentStore creates a document store over backend.
func NewDocumentStore(backend Backend) *DocumentStore {
	return &DocumentStore{backend: backend}
}

// Read returns the stored document for userID. A user with no stored
// document gets an empty one rather than an error.
func (s *DocumentStore) Read(ctx context.Context, userID string) (*model.UserDocument, error) {
	data, err := s.backend.Get(ctx, documentKey(userID))
	if errors.Is(err, ErrNotFound) {
		return model.NewUserDocument(), nil
	}
	if err != nil {
		return nil, err
	}

	var doc model.UserDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document for %s: %w", userID, err)
	}
	doc.Normalize()
	return &doc, nil
}

// Write replaces the whole stored document for userID and returns the
// encoded size.
func (s *DocumentStore) Write(ctx context.Context, userID string, doc *model.UserDocument) (int, error) {
	doc.Normalize()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to encode document: %w", err)
	}
	if err := s.backend.Put(ctx, documentKey(userID), data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Ping reports whether the underlying backend is reachable.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}
