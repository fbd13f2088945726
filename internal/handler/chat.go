package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-sync/internal/middleware"
	"github.com/capitalize-ai/chat-sync/internal/model"
	"github.com/capitalize-ai/chat-sync/internal/service"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
	"github.com/capitalize-ai/chat-sync/pkg/metrics"
)

// ChatHandler runs chat turns and streams the reply tokens back.
type ChatHandler struct {
	service *service.ChatService
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  log,
	}
}

// Chat handles POST /api/chat
//
// The reply is streamed as token events followed by a done event carrying
// the saved assistant message. Other connections of the user receive one
// update once the turn is saved.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID != "" {
		if err := middleware.ValidateID(req.ConversationID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if !h.service.HasProvider(req.Provider) {
		writeError(w, http.StatusServiceUnavailable, "no LLM provider configured")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// A long reply can outlast the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	// A client that goes away stops receiving tokens, but the turn is still
	// saved once the provider finishes.
	clientGone := false
	conv, msg, err := h.service.Send(ctx, userID, &req, func(token string, index int) error {
		if clientGone {
			return nil
		}
		if err := sendSSEEvent(w, flusher, "token", &model.TokenEvent{Token: token, Index: index}); err != nil {
			clientGone = true
		}
		return nil
	})
	if err != nil {
		h.logger.Error("chat turn failed", zap.String("user_id", userID), zap.Error(err))
		sendSSEEvent(w, flusher, "error", &model.ErrorEvent{Code: "chat_error", Message: "failed to complete chat"})
		return
	}

	if msg.Error != nil {
		sendSSEEvent(w, flusher, "error", &model.ErrorEvent{Code: msg.Error.Type, Message: msg.Error.Message})
	}
	sendSSEEvent(w, flusher, "done", &model.ChatDoneEvent{ConversationID: conv.ID, Message: msg})
}
