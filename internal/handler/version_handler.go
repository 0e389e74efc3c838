package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"modelhub/internal/auth"
	"modelhub/internal/domain"
)

const maxBundleSize = 100 << 20 // 100MB на multipart-форму

// VersionLifecycle описывает операции сервиса версий, используемые хендлером
type VersionLifecycle interface {
	Create(ctx context.Context, uploadID int64, userID string, staff bool, tag, category, information string, bundle domain.ArtifactBundle) (*domain.ModelVersion, error)
	Retry(ctx context.Context, versionID uuid.UUID, userID string, staff bool, category, information string, bundle domain.ArtifactBundle) (*domain.ModelVersion, error)
	Get(ctx context.Context, versionID uuid.UUID, userID string, staff bool) (*domain.ModelVersion, error)
	Activate(ctx context.Context, versionID uuid.UUID, userID string, staff bool) error
	Deactivate(ctx context.Context, versionID uuid.UUID, userID string, staff bool) error
	SoftDelete(ctx context.Context, versionID uuid.UUID, userID string, staff bool) error
	UpdateInformation(ctx context.Context, versionID uuid.UUID, userID string, staff bool, tag, information *string) error
	Test(ctx context.Context, versionID uuid.UUID, userID string, staff bool, input any) (*domain.TestResult, error)
	OpenArtifact(ctx context.Context, versionID uuid.UUID, userID string, staff bool, fileName string) (io.ReadCloser, error)
}

type VersionHandler struct {
	versionService VersionLifecycle
}

func NewVersionHandler(versionService VersionLifecycle) *VersionHandler {
	return &VersionHandler{versionService: versionService}
}

type versionResponse struct {
	Success bool                 `json:"success"`
	Version *domain.ModelVersion `json:"version"`
}

// UploadVersion принимает три артефакта и метаданные, создает версию
// и запускает валидацию. FAIL валидации возвращается как данные:
// версия со статусом FAIL и диагностикой в логе
func (h *VersionHandler) UploadVersion(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	uploadID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid model ID", http.StatusBadRequest)
		return
	}

	bundle, ok := h.readBundle(w, r)
	if !ok {
		return
	}

	version, err := h.versionService.Create(
		r.Context(),
		uploadID,
		userID,
		auth.IsStaff(r),
		r.FormValue("tag"),
		r.FormValue("category"),
		r.FormValue("information"),
		bundle,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, versionResponse{Success: true, Version: version})
}

// RetryVersion заменяет артефакты проваленной версии и валидирует заново
func (h *VersionHandler) RetryVersion(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	bundle, ok := h.readBundle(w, r)
	if !ok {
		return
	}

	version, err := h.versionService.Retry(
		r.Context(),
		versionID,
		userID,
		auth.IsStaff(r),
		r.FormValue("category"),
		r.FormValue("information"),
		bundle,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, versionResponse{Success: true, Version: version})
}

// GetVersion возвращает версию вместе с логом валидации
func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	version, err := h.versionService.Get(r.Context(), versionID, userID, auth.IsStaff(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, version)
}

// ActivateVersion делает версию единственной активной у своей модели
func (h *VersionHandler) ActivateVersion(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.versionService.Activate, "Version is now active. Other versions have been deactivated.")
}

// DeactivateVersion выводит версию из активного состояния
func (h *VersionHandler) DeactivateVersion(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.versionService.Deactivate, "Version has been deactivated.")
}

// DeleteVersion мягко удаляет версию
func (h *VersionHandler) DeleteVersion(w http.ResponseWriter, r *http.Request) {
	h.lifecycleAction(w, r, h.versionService.SoftDelete, "Version deleted successfully.")
}

// Поля-указатели отличают отсутствующее поле от пустого: не присланное
// в PATCH поле сохраняет текущее значение
type updateVersionRequest struct {
	Tag         *string `json:"tag"`
	Information *string `json:"information"`
}

// UpdateVersion редактирует тег и описание версии
func (h *VersionHandler) UpdateVersion(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	var req updateVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.versionService.UpdateInformation(r.Context(), versionID, userID, auth.IsStaff(r), req.Tag, req.Information); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type testRequest struct {
	Input json.RawMessage `json:"input"`
}

// TestVersion выполняет ручной запуск точки входа. Вход — объект либо
// список объектов, список прогоняется поэлементно
func (h *VersionHandler) TestVersion(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	var req testRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	trimmed := strings.TrimSpace(string(req.Input))
	switch {
	case strings.HasPrefix(trimmed, "{"):
		input, err := decodeTestInput(req.Input)
		if err != nil {
			http.Error(w, "Invalid JSON in input", http.StatusBadRequest)
			return
		}

		result, err := h.versionService.Test(r.Context(), versionID, userID, auth.IsStaff(r), input)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case strings.HasPrefix(trimmed, "["):
		var items []json.RawMessage
		if err := json.Unmarshal(req.Input, &items); err != nil {
			http.Error(w, "Invalid JSON in input", http.StatusBadRequest)
			return
		}

		batch := domain.BatchTestResult{Status: "ok", Batch: true}
		for _, item := range items {
			input, err := decodeTestInput(item)
			if err != nil {
				batch.Outputs = append(batch.Outputs, domain.TestResult{
					Status: "error",
					Error:  "each item in the list must be a JSON object",
				})
				continue
			}

			result, err := h.versionService.Test(r.Context(), versionID, userID, auth.IsStaff(r), input)
			if err != nil {
				writeError(w, err)
				return
			}
			batch.Outputs = append(batch.Outputs, *result)
		}
		writeJSON(w, http.StatusOK, batch)

	default:
		http.Error(w, "Top-level input must be an object or a list of objects", http.StatusBadRequest)
	}
}

// decodeTestInput разбирает объект входа, сохраняя числовые литералы
// как json.Number: 1 и 1.0 должны дойти до точки входа разными типами
func decodeTestInput(raw json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var input map[string]any
	if err := dec.Decode(&input); err != nil {
		return nil, err
	}
	return input, nil
}

// DownloadArtifact отдает один файл бандла версии
func (h *VersionHandler) DownloadArtifact(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	fileName := chi.URLParam(r, "filename")
	reader, err := h.versionService.OpenArtifact(r.Context(), versionID, userID, auth.IsStaff(r), fileName)
	if err != nil {
		writeError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if _, err := io.Copy(w, reader); err != nil {
		log.Printf("failed to stream artifact %s for %s: %v", fileName, versionID, err)
	}
}

// lifecycleAction — общий каркас операций activate/deactivate/delete
func (h *VersionHandler) lifecycleAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, id uuid.UUID, userID string, staff bool) error,
	message string,
) {
	userID, err := auth.VerifyToken(r)
	if err != nil {
		log.Printf("Authorization failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	versionID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid version ID", http.StatusBadRequest)
		return
	}

	if err := action(r.Context(), versionID, userID, auth.IsStaff(r)); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
}

// readBundle извлекает три артефакта из multipart-формы. Отсутствие
// любого файла — ошибка запроса с перечислением недостающих
func (h *VersionHandler) readBundle(w http.ResponseWriter, r *http.Request) (domain.ArtifactBundle, bool) {
	if err := r.ParseMultipartForm(maxBundleSize); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return domain.ArtifactBundle{}, false
	}
	defer r.MultipartForm.RemoveAll()

	var missing []string
	model := h.readFormFile(r, "model_file")
	if model == nil {
		missing = append(missing, "Model file (.pt)")
	}
	predict := h.readFormFile(r, "predict_file")
	if predict == nil {
		missing = append(missing, "Predict file (.py)")
	}
	schema := h.readFormFile(r, "schema_file")
	if schema == nil {
		missing = append(missing, "Schema file (.json)")
	}

	if len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error: fmt.Sprintf("Missing required files: %s", strings.Join(missing, ", ")),
		})
		return domain.ArtifactBundle{}, false
	}

	return domain.ArtifactBundle{Model: model, Predict: predict, Schema: schema}, true
}

func (h *VersionHandler) readFormFile(r *http.Request, field string) []byte {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("failed to read form file %s: %v", field, err)
		return nil
	}
	return data
}
