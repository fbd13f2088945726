// Package service holds the mutation logic for user documents. Every
// mutation reads the whole document, changes it in memory, writes it back
// and only then notifies live subscribers.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/capitalize-ai/chat-sync/internal/model"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNoProvider   = errors.New("no llm provider configured")
)

// DocumentStore persists whole user documents.
type DocumentStore interface {
	Read(ctx context.Context, userID string) (*model.UserDocument, error)
	Write(ctx context.Context, userID string, doc *model.UserDocument) (int, error)
}

// Notifier fans document changes out to a user's live connections.
type Notifier interface {
	Notify(userID string, doc *model.UserDocument) int
	NotifyFiles(userID string, meta *model.FileMetadata) int
}

// EventPublisher receives a summary of every saved document.
type EventPublisher interface {
	PublishDocumentSaved(ctx context.Context, evt *model.DocumentSaved) (uint64, error)
}

// classify maps model errors onto the service error kinds.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrConversationNotFound),
		errors.Is(err, model.ErrFolderNotFound),
		errors.Is(err, model.ErrFileNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, model.ErrDuplicateID),
		errors.Is(err, model.ErrDuplicateName),
		errors.Is(err, model.ErrMoveIntoSelf),
		errors.Is(err, model.ErrUnknownItem):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return err
}

// keyedMutex serializes read-modify-write cycles per user within this
// process. Entries are dropped when no goroutine holds or waits on them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
