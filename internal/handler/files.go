package handler

import (
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/chat-sync/internal/middleware"
	"github.com/capitalize-ai/chat-sync/internal/model"
	"github.com/capitalize-ai/chat-sync/internal/service"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
)

// multipartMemory is how much of an upload is held in memory before the
// rest spills to temporary files.
const multipartMemory = 8 << 20

// FileHandler serves a user's shared files and folders.
type FileHandler struct {
	service   *service.FileService
	maxUpload int64
	logger    *logger.Logger
}

// NewFileHandler creates a new file handler.
func NewFileHandler(svc *service.FileService, maxUpload int64, log *logger.Logger) *FileHandler {
	return &FileHandler{
		service:   svc,
		maxUpload: maxUpload,
		logger:    log,
	}
}

// List handles GET /api/shared-files
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	meta, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, r, err, "failed to load files")
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// Upload handles POST /api/shared-files
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Leave room for the other form fields and multipart framing.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	var folderID *string
	if v := r.FormValue("folderId"); v != "" && v != "null" {
		if err := middleware.ValidateID(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		folderID = &v
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	saved, err := h.service.Upload(r.Context(), middleware.GetUserID(r.Context()), service.Upload{
		Name:         header.Filename,
		Type:         contentType,
		FolderID:     folderID,
		UploaderName: r.FormValue("uploaderName"),
		Body:         file,
	})
	if err != nil {
		writeServiceError(w, h.logger, r, err, "failed to upload file")
		return
	}

	writeJSON(w, http.StatusCreated, saved)
}

// Download handles GET /api/shared-files/{fileId}
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")
	if err := middleware.ValidateID(fileID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, f, err := h.service.Open(r.Context(), middleware.GetUserID(r.Context()), fileID)
	if err != nil {
		writeServiceError(w, h.logger, r, err, "failed to open file")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", file.Type)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	http.ServeContent(w, r, "", file.UploadDate, f)
}

// Delete handles DELETE /api/shared-files
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req model.DeleteFileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Delete(r.Context(), middleware.GetUserID(r.Context()), req.FileID); err != nil {
		writeServiceError(w, h.logger, r, err, "failed to delete file")
		return
	}
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}

// CreateFolder handles POST /api/shared-files/folders
func (h *FileHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
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

// DeleteFolder handles DELETE /api/shared-files/folders
func (h *FileHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	var req model.DeleteFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.DeleteFolder(r.Context(), middleware.GetUserID(r.Context()), req.FolderID); err != nil {
		writeServiceError(w, h.logger, r, err, "failed to delete folder")
		return
	}
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}

// Move handles POST /api/shared-files/move
func (h *FileHandler) Move(w http.ResponseWriter, r *http.Request) {
	var req model.MoveItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.service.Move(r.Context(), middleware.GetUserID(r.Context()), req.ItemID, req.ItemType, req.TargetFolderID)
	if err != nil {
		writeServiceError(w, h.logger, r, err, "failed to move item")
		return
	}
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true})
}
