package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/chat-sync/internal/model"
)

const (
	// StreamName is the name of the document change stream.
	StreamName = "SYNC_EVENTS"

	// SubjectPrefix is the prefix for all change feed subjects.
	SubjectPrefix = "sync"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the change stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	if _, err := js.Stream(ctx, StreamName); err == nil {
		return nil
	}

	_, err := js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		MaxBytes:    1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		Description: "Summaries of saved user documents",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// SavedSubject returns the subject for document-saved events of userID.
func SavedSubject(userID string) string {
	return fmt.Sprintf("%s.%s.saved", SubjectPrefix, subjectToken(userID))
}

// subjectToken makes userID safe to use as a single subject token.
func subjectToken(userID string) string {
	if userID == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, userID)
}

// PublishDocumentSaved publishes a summary of a saved document.
func (m *StreamManager) PublishDocumentSaved(ctx context.Context, evt *model.DocumentSaved) (uint64, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, SavedSubject(evt.UserID), data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish event: %w", err)
	}

	return ack.Sequence, nil
}
