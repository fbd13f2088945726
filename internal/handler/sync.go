package handler

import (
	"net/http"

	"github.com/capitalize-ai/chat-sync/internal/middleware"
	"github.com/capitalize-ai/chat-sync/internal/model"
	"github.com/capitalize-ai/chat-sync/internal/service"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
)

// SyncHandler serves the whole-document fetch and save endpoints and the
// share-chat endpoint.
type SyncHandler struct {
	service *service.SyncService
	logger  *logger.Logger
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(svc *service.SyncService, log *logger.Logger) *SyncHandler {
	return &SyncHandler{
		service: svc,
		logger:  log,
	}
}

// Get handles GET /api/sync
func (h *SyncHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	doc, err := h.service.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, r, err, "failed to load data")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Save handles POST /api/sync
func (h *SyncHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var doc model.UserDocument
	if err := decodeJSON(w, r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Save(r.Context(), userID, &doc); err != nil {
		writeServiceError(w, h.logger, r, err, "failed to save data")
		return
	}

	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}

// Share handles POST /api/share-chat
func (h *SyncHandler) Share(w http.ResponseWriter, r *http.Request) {
	senderID := middleware.GetUserID(r.Context())

	var req model.ShareChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conv, err := h.service.ShareChat(r.Context(), senderID, req.RecipientID, req.Chat)
	if err != nil {
		writeServiceError(w, h.logger, r, err, "failed to share chat")
		return
	}

	writeJSON(w, http.StatusOK, model.ShareChatResponse{Success: true, Conversation: conv})
}
