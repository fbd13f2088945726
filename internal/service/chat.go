package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-sync/internal/llm"
	"github.com/capitalize-ai/chat-sync/internal/model"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
	"github.com/capitalize-ai/chat-sync/pkg/metrics"
)

const (
	titleLength = 30

	// turnTimeout bounds one provider call. The call outlives the request
	// so a reply is recorded even when the client disconnects mid-stream.
	turnTimeout = 5 * time.Minute
)

// ChatService runs one chat turn against an LLM provider and records it in
// the user's document.
type ChatService struct {
	syncSvc *SyncService
	router  *llm.Router
	logger  *logger.Logger
	now     func() time.Time
}

// NewChatService creates a chat service. router may be nil when no provider
// is configured.
func NewChatService(syncSvc *SyncService, router *llm.Router, log *logger.Logger) *ChatService {
	if log == nil {
		log = logger.NewNop()
	}
	return &ChatService{
		syncSvc: syncSvc,
		router:  router,
		logger:  log,
		now:     time.Now,
	}
}

// HasProvider reports whether a client is configured for provider. An empty
// provider selects the default one.
func (s *ChatService) HasProvider(provider string) bool {
	if s.router == nil {
		return false
	}
	_, err := s.router.Get(provider)
	return err == nil
}

// Send appends the user message, streams the assistant reply through
// onToken and then saves both messages with a single write. A provider
// failure is recorded on the assistant message rather than returned.
func (s *ChatService) Send(ctx context.Context, userID string, req *model.ChatRequest, onToken llm.StreamCallback) (*model.Conversation, *model.Message, error) {
	if s.router == nil {
		return nil, nil, ErrNoProvider
	}
	client, err := s.router.Get(req.Provider)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrNoProvider, err)
	}

	doc, err := s.syncSvc.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	convID := req.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	var history []model.Message
	if conv := doc.FindConversation(convID); conv != nil {
		if conv.Deleted {
			return nil, nil, classify(model.ErrConversationNotFound)
		}
		history = conv.Messages
	}

	start := s.now()
	userMsg := model.Message{
		ID:              uuid.NewString(),
		Role:            model.RoleUser,
		Content:         req.Content,
		Timestamp:       start,
		ContentAnalysis: analyzeContent(req.Content),
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = client.DefaultModel()
	}

	system, messages := llm.FromMessages(append(append([]model.Message{}, history...), userMsg))

	var (
		content    strings.Builder
		firstToken time.Time
	)
	turnCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), turnTimeout)
	defer cancel()

	resp, streamErr := client.CompleteStream(turnCtx, &llm.CompletionRequest{
		Model:    modelID,
		System:   system,
		Messages: messages,
	}, func(token string, index int) error {
		if index == 0 {
			firstToken = s.now()
		}
		content.WriteString(token)
		if onToken != nil {
			return onToken(token, index)
		}
		return nil
	})

	end := s.now()
	assistant := model.Message{
		ID:        uuid.NewString(),
		Role:      model.RoleAssistant,
		Content:   content.String(),
		Timestamp: end,
	}
	elapsed := end.Sub(start).Milliseconds()
	assistant.ProcessingTime = &elapsed

	status := "success"
	if streamErr != nil {
		status = "error"
		assistant.Error = &model.MessageError{Type: "provider", Message: streamErr.Error()}
		s.logger.Warn("llm stream failed",
			zap.String("user_id", userID),
			zap.String("provider", client.Name()),
			zap.String("model", modelID),
			zap.Error(streamErr),
		)
	} else {
		tokens := resp.TokensOut
		assistant.TokenCount = &tokens
		assistant.ContentAnalysis = analyzeContent(assistant.Content)
		assistant.PerformanceMetrics = performance(start, firstToken, end, resp)
	}
	metrics.RecordLLMStream(modelID, status, end.Sub(start).Seconds(), tokensIn(resp), tokensOut(resp))

	var saved model.Conversation
	_, err = s.syncSvc.Mutate(context.WithoutCancel(ctx), userID, SourceChat, func(doc *model.UserDocument) error {
		conv := doc.FindConversation(convID)
		if conv == nil {
			if err := doc.AddConversation(model.Conversation{
				ID:        convID,
				Title:     deriveTitle(req.Content),
				Timestamp: start,
				UserID:    userID,
				ModelID:   modelID,
			}); err != nil {
				return err
			}
			conv = doc.FindConversation(convID)
		}
		conv.ModelID = modelID
		conv.Messages = append(conv.Messages, userMsg, assistant)
		conv.Timestamp = end
		saved = *conv
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return &saved, &assistant, nil
}

func deriveTitle(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if content == "" {
		return "New Chat"
	}
	runes := []rune(content)
	if len(runes) <= titleLength {
		return content
	}
	return string(runes[:titleLength]) + "..."
}

func analyzeContent(content string) *model.ContentAnalysis {
	return &model.ContentAnalysis{
		HasCode:       strings.Contains(content, "```"),
		HasMath:       strings.Contains(content, "$$") || strings.Contains(content, `\(`) || strings.Contains(content, `\[`),
		HasMarkdown:   strings.ContainsAny(content, "#*_`") || strings.Contains(content, "\n- "),
		WordCount:     len(strings.Fields(content)),
		QuestionCount: strings.Count(content, "?"),
	}
}

func performance(start, firstToken, end time.Time, resp *llm.CompletionResponse) *model.PerformanceMetrics {
	pm := &model.PerformanceMetrics{
		TotalTime: end.Sub(start).Seconds(),
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
		Model:     resp.Model,
	}
	if !firstToken.IsZero() {
		pm.StreamingTime = end.Sub(firstToken).Seconds()
		if pm.StreamingTime > 0 {
			pm.TokensPerSecond = float64(resp.TokensOut) / pm.StreamingTime
		}
	}
	return pm
}

func tokensIn(resp *llm.CompletionResponse) int {
	if resp == nil {
		return 0
	}
	return resp.TokensIn
}

func tokensOut(resp *llm.CompletionResponse) int {
	if resp == nil {
		return 0
	}
	return resp.TokensOut
}
