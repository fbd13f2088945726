package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/chat-sync/internal/middleware"
	"github.com/capitalize-ai/chat-sync/internal/model"
	"github.com/capitalize-ai/chat-sync/internal/service"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
)

// ConversationHandler handles targeted conversation and folder mutations.
// Each one rewrites the user's document and notifies live connections, the
// same as a full save.
type ConversationHandler struct {
	service *service.SyncService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.SyncService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// urlID reads and validates the {id} route parameter.
func urlID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

// Rename handles PATCH /api/conversations/{id}
func (h *ConversationHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	var req model.RenameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.service.RenameConversation(r.Context(), middleware.GetUserID(r.Context()), id, req.Title); err != nil {
		writeServiceError(w, h.logger, r, err, "failed to rename conversation")
		return
	}
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}

// Move handles POST /api/conversations/{id}/move
func (h *ConversationHandler) Move(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	var req model.MoveConversationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.service.MoveConversation(r.Context(), middleware.GetUserID(r.Context()), id, req.FolderID); err != nil {
		writeServiceError(w, h.logger, r, err, "failed to move conversation")
		return
	}
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}

// Delete handles DELETE /api/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	if _, err := h.service.DeleteConversation(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, r, err, "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateFolder handles POST /api/folders
func (h *ConversationHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req model.CreateFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	folder, err := h.service.CreateFolder(r.Context(), middleware.GetUserID(r.Context()), req.Name, req.ParentID)
	if err != nil {
		writeServiceError(w, h.logger, r, err, "failed to create folder")
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

// RenameFolder handles PATCH /api/folders/{id}
func (h *ConversationHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	var req model.RenameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.service.RenameFolder(r.Context(), middleware.GetUserID(r.Context()), id, req.Title); err != nil {
		writeServiceError(w, h.logger, r, err, "failed to rename folder")
		return
	}
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}

// DeleteFolder handles DELETE /api/folders/{id}
func (h *ConversationHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(w, r)
	if !ok {
		return
	}

	if _, err := h.service.DeleteFolder(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, r, err, "failed to delete folder")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
