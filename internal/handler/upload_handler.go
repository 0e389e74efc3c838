package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"modelhub/internal/auth"
	"modelhub/internal/domain"
	"modelhub/internal/service"
)

type UploadHandler struct {
	uploadService *service.UploadService
}

func NewUploadHandler(uploadService *service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

type createModelRequest struct {
	Name string `json:"name"`
}

type modelResponse struct {
	Success bool           `json:"success"`
	Model   *domain.Upload `json:"model"`
}

type modelDetailResponse struct {
	Model    *domain.Upload        `json:"model"`
	Versions []domain.ModelVersion `json:"versions"`
	Counts   domain.VersionCounts  `json:"version_counts"`
}

// CreateModel обрабатывает создание логической модели
func (h *UploadHandler) CreateModel(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	upload, err := h.uploadService.Create(r.Context(), userID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, modelResponse{Success: true, Model: upload})
}

// ListModels возвращает модели пользователя со счетчиками версий
func (h *UploadHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	uploads, err := h.uploadService.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploads)
}

// GetModel возвращает модель и все ее версии
func (h *UploadHandler) GetModel(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid model ID", http.StatusBadRequest)
		return
	}

	upload, versions, err := h.uploadService.Get(r.Context(), id, userID, auth.IsStaff(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, modelDetailResponse{
		Model:    upload,
		Versions: versions,
		Counts:   countVersions(versions),
	})
}

// DeleteModel удаляет модель, у которой не осталось неудаленных версий
func (h *UploadHandler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid model ID", http.StatusBadRequest)
		return
	}

	if err := h.uploadService.Delete(r.Context(), id, userID, auth.IsStaff(r)); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func countVersions(versions []domain.ModelVersion) domain.VersionCounts {
	var c domain.VersionCounts
	for _, v := range versions {
		c.Total++
		switch {
		case v.IsDeleted:
			c.Deleted++
		case v.Status == domain.StatusPass:
			c.Available++
			if v.IsActive {
				c.Active++
			}
		case v.Status == domain.StatusFail:
			c.Failed++
		}
	}
	return c
}
