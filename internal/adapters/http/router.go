package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hzwangyq/bidcheck/internal/core/domain"
	"github.com/hzwangyq/bidcheck/internal/core/ports"
)

type Router struct {
	ingestor  ports.DocumentIngestor
	docs      ports.DocumentRepository
	storage   ports.ObjectStorage
	tasks     ports.TaskService
	checklist ports.ChecklistRepository
	evaluator ports.ChecklistService
	results   ports.CheckResultRepository
	logger    *slog.Logger
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	docs ports.DocumentRepository,
	storage ports.ObjectStorage,
	tasks ports.TaskService,
	checklist ports.ChecklistRepository,
	evaluator ports.ChecklistService,
	results ports.CheckResultRepository,
	logger *slog.Logger,
) *Router {
	return &Router{
		ingestor:  ingestor,
		docs:      docs,
		storage:   storage,
		tasks:     tasks,
		checklist: checklist,
		evaluator: evaluator,
		results:   results,
		logger:    logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/files", rt.files)
	mux.HandleFunc("/v1/files/", rt.fileByID)
	mux.HandleFunc("/v1/convert2md", rt.submitConversion)
	mux.HandleFunc("/v1/convert2md/", rt.conversionByID)
	mux.HandleFunc("/v1/checklist", rt.checklistCollection)
	mux.HandleFunc("/v1/checklist/", rt.checklistItemByID)
	mux.HandleFunc("/v1/review", rt.runReview)
	mux.HandleFunc("/v1/review/", rt.reviewByFileID)
	return requestIDMiddleware(accessLogMiddleware(rt.logger, mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) files(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadFile(w, r)
	case http.MethodGet:
		rt.listFiles(w, r)
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) uploadFile(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) listFiles(w http.ResponseWriter, r *http.Request) {
	docs, err := rt.docs.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": docs})
}

func (rt *Router) fileByID(w http.ResponseWriter, r *http.Request) {
	fileID := strings.TrimPrefix(r.URL.Path, "/v1/files/")
	if fileID == "" || strings.Contains(fileID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file id is required"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := rt.docs.GetByID(r.Context(), fileID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)
	case http.MethodDelete:
		doc, err := rt.docs.GetByID(r.Context(), fileID)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := rt.storage.Delete(r.Context(), doc.StoragePath); err != nil {
			rt.logger.Warn("delete stored bytes", "file_id", fileID, "error", err)
		}
		if err := rt.docs.Delete(r.Context(), fileID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"file_id": fileID, "status": "deleted"})
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) submitConversion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		FileID string `json:"file_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.FileID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file_id is required"})
		return
	}

	taskID, err := rt.tasks.Submit(r.Context(), req.FileID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"task_id": taskID,
		"status":  string(domain.TaskPending),
	})
}

func (rt *Router) conversionByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/convert2md/")
	taskID, action, _ := strings.Cut(rest, "/")
	if taskID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task id is required"})
		return
	}

	switch action {
	case "":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		task, err := rt.tasks.Status(r.Context(), taskID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	case "result":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w)
			return
		}
		result, err := rt.tasks.Result(r.Context(), taskID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	case "stop":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w)
			return
		}
		if err := rt.tasks.Stop(r.Context(), taskID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "status": "stopping"})
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown action"})
	}
}

func (rt *Router) checklistCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Name        string `json:"name"`
			Requirement string `json:"requirement"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Requirement) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and requirement are required"})
			return
		}
		item := domain.ChecklistItem{
			ID:              uuid.NewString(),
			Name:            req.Name,
			RequirementText: req.Requirement,
			CreatedAt:       time.Now().UTC(),
		}
		if err := rt.checklist.Create(r.Context(), &item); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, item)
	case http.MethodGet:
		items, err := rt.checklist.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		writeMethodNotAllowed(w)
	}
}

func (rt *Router) checklistItemByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/checklist/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "item id is required"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		item, err := rt.checklist.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	case http.MethodDelete:
		if err := rt.checklist.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
	default:
		writeMethodNotAllowed(w)
	}
}

// runReview evaluates a completed conversion on demand. The review worker
// does the same automatically; this endpoint exists for re-runs after
// checklist edits.
func (rt *Router) runReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.TaskID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task_id is required"})
		return
	}

	result, err := rt.tasks.Result(r.Context(), req.TaskID)
	if err != nil {
		writeError(w, err)
		return
	}

	items, err := rt.checklist.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if len(items) == 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "checklist is empty"})
		return
	}

	checkResults := rt.evaluator.EvaluateAll(r.Context(), result.MarkdownContent, items)
	if err := rt.results.SaveAll(r.Context(), result.FileID, checkResults); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"file_id": result.FileID,
		"results": checkResults,
	})
}

func (rt *Router) reviewByFileID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	fileID := strings.TrimPrefix(r.URL.Path, "/v1/review/")
	if fileID == "" || strings.Contains(fileID, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file id is required"})
		return
	}

	results, err := rt.results.ListByFile(r.Context(), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file_id": fileID, "results": results})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
