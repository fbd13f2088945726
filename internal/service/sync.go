package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-sync/internal/model"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
	"github.com/capitalize-ai/chat-sync/pkg/metrics"
	"github.com/capitalize-ai/chat-sync/pkg/tracing"
)

// Write sources, used for metrics and the change feed.
const (
	SourceSync         = "sync"
	SourceShare        = "share"
	SourceConversation = "conversation"
	SourceFolder       = "folder"
	SourceChat         = "chat"
)

// defaultPublishTimeout bounds the change feed publish, which runs while the
// user's write lock is held.
const defaultPublishTimeout = 2 * time.Second

// SyncService reads and mutates user documents.
type SyncService struct {
	store     DocumentStore
	notifier  Notifier
	publisher EventPublisher
	logger    *logger.Logger
	tracer    trace.Tracer
	locks     *keyedMutex
	now       func() time.Time

	publishTimeout time.Duration
}

// NewSyncService creates a sync service. publisher may be nil.
func NewSyncService(store DocumentStore, notifier Notifier, publisher EventPublisher, log *logger.Logger) *SyncService {
	if log == nil {
		log = logger.NewNop()
	}
	return &SyncService{
		store:     store,
		notifier:  notifier,
		publisher: publisher,
		logger:    log,
		tracer:    tracing.Tracer("chat-sync/service"),
		locks:     newKeyedMutex(),
		now:       time.Now,

		publishTimeout: defaultPublishTimeout,
	}
}

// Get returns the current document of userID.
func (s *SyncService) Get(ctx context.Context, userID string) (*model.UserDocument, error) {
	ctx, span := s.tracer.Start(ctx, "SyncService.Get", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	doc, err := s.store.Read(ctx, userID)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return doc, nil
}

// Save replaces the document of userID with doc.
func (s *SyncService) Save(ctx context.Context, userID string, doc *model.UserDocument) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	return s.persist(ctx, userID, SourceSync, doc)
}

// Mutate applies fn to the current document of userID and persists the
// result. Nothing is written or notified when fn fails.
func (s *SyncService) Mutate(ctx context.Context, userID, source string, fn func(doc *model.UserDocument) error) (*model.UserDocument, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	doc, err := s.store.Read(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := fn(doc); err != nil {
		return nil, classify(err)
	}
	if err := s.persist(ctx, userID, source, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// persist writes doc and, only once the write succeeded, notifies the
// user's subscribers and publishes the change summary.
func (s *SyncService) persist(ctx context.Context, userID, source string, doc *model.UserDocument) error {
	ctx, span := s.tracer.Start(ctx, "SyncService.persist", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("source", source),
	))
	defer span.End()

	size, err := s.store.Write(ctx, userID, doc)
	metrics.RecordDocumentWrite(source, err)
	if err != nil {
		recordSpanError(span, err)
		s.logger.Error("document write failed",
			zap.String("user_id", userID),
			zap.String("source", source),
			zap.Error(err),
		)
		return fmt.Errorf("failed to write document: %w", err)
	}
	metrics.DocumentBytes.Observe(float64(size))

	delivered := s.notifier.Notify(userID, doc)
	span.SetAttributes(attribute.Int("subscribers.delivered", delivered))

	s.logger.Debug("document saved",
		zap.String("user_id", userID),
		zap.String("source", source),
		zap.Int("bytes", size),
		zap.Int("delivered", delivered),
	)

	s.publishSaved(ctx, userID, source, doc)
	return nil
}

func (s *SyncService) publishSaved(ctx context.Context, userID, source string, doc *model.UserDocument) {
	if s.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	_, err := s.publisher.PublishDocumentSaved(ctx, &model.DocumentSaved{
		UserID:        userID,
		Source:        source,
		Conversations: len(doc.Conversations),
		Folders:       len(doc.Folders),
		SavedAt:       s.now(),
	})
	if err != nil {
		s.logger.Warn("failed to publish document saved event",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// ShareChat copies chat into the Inbox folder of recipientID. The sender's
// document is not touched.
func (s *SyncService) ShareChat(ctx context.Context, senderID, recipientID string, chat *model.Conversation) (*model.Conversation, error) {
	if recipientID == "" || chat == nil {
		return nil, fmt.Errorf("%w: recipient and chat are required", ErrInvalidInput)
	}

	var shared model.Conversation
	_, err := s.Mutate(ctx, recipientID, SourceShare, func(doc *model.UserDocument) error {
		now := s.now()
		doc.EnsureInbox(now)

		title := strings.TrimSpace(chat.Title)
		if title == "" {
			title = "Shared Chat"
		}

		inbox := model.InboxFolderID
		shared = model.Conversation{
			ID:         "shared_" + uuid.NewString(),
			Title:      title,
			Timestamp:  now,
			Messages:   append([]model.Message{}, chat.Messages...),
			FolderID:   &inbox,
			UserID:     recipientID,
			ModelID:    chat.ModelID,
			SharedFrom: senderID,
		}
		return doc.AddConversation(shared)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("chat shared",
		zap.String("sender_id", senderID),
		zap.String("recipient_id", recipientID),
		zap.String("conversation_id", shared.ID),
	)
	return &shared, nil
}

// RenameConversation sets the title of a conversation.
func (s *SyncService) RenameConversation(ctx context.Context, userID, conversationID, title string) (*model.UserDocument, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	return s.Mutate(ctx, userID, SourceConversation, func(doc *model.UserDocument) error {
		return doc.RenameConversation(conversationID, title, s.now())
	})
}

// MoveConversation files a conversation under folderID, or uncategorizes it
// when folderID is nil.
func (s *SyncService) MoveConversation(ctx context.Context, userID, conversationID string, folderID *string) (*model.UserDocument, error) {
	return s.Mutate(ctx, userID, SourceConversation, func(doc *model.UserDocument) error {
		return doc.MoveConversation(conversationID, folderID, s.now())
	})
}

// DeleteConversation soft-deletes a conversation.
func (s *SyncService) DeleteConversation(ctx context.Context, userID, conversationID string) (*model.UserDocument, error) {
	return s.Mutate(ctx, userID, SourceConversation, func(doc *model.UserDocument) error {
		return doc.SoftDeleteConversation(conversationID, s.now())
	})
}

// CreateFolder adds a folder and returns it.
func (s *SyncService) CreateFolder(ctx context.Context, userID, name string, parentID *string) (*model.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is required", ErrInvalidInput)
	}

	folder := model.Folder{
		ID:            uuid.NewString(),
		Name:          name,
		CreatedAt:     s.now(),
		ParentID:      parentID,
		Conversations: []string{},
	}
	if _, err := s.Mutate(ctx, userID, SourceFolder, func(doc *model.UserDocument) error {
		if parentID != nil && doc.FindFolder(*parentID) == nil {
			return model.ErrFolderNotFound
		}
		return doc.CreateFolder(folder)
	}); err != nil {
		return nil, err
	}
	return &folder, nil
}

// RenameFolder sets the name of a folder.
func (s *SyncService) RenameFolder(ctx context.Context, userID, folderID, name string) (*model.UserDocument, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is required", ErrInvalidInput)
	}
	return s.Mutate(ctx, userID, SourceFolder, func(doc *model.UserDocument) error {
		return doc.RenameFolder(folderID, name)
	})
}

// DeleteFolder removes a folder. Its conversations become uncategorized.
func (s *SyncService) DeleteFolder(ctx context.Context, userID, folderID string) (*model.UserDocument, error) {
	return s.Mutate(ctx, userID, SourceFolder, func(doc *model.UserDocument) error {
		return doc.DeleteFolder(folderID)
	})
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
