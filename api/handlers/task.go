package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"imageUpscaler/api/dto"
	"imageUpscaler/api/middleware"
	"imageUpscaler/api/storage"
	"imageUpscaler/api/validation"
)

type TaskService interface {
	Submit(ctx context.Context, traceID string, data []byte, filename, contentType string) (*dto.SubmitResponse, error)
	Status(ctx context.Context, taskID string) (*dto.StatusResponse, error)
	FetchResult(ctx context.Context, name string) (storage.Blob, error)
}

type TaskHandler struct {
	service     TaskService
	maxFileSize int64
	logger      *zap.Logger
}

func NewTaskHandler(service TaskService, maxFileSize int64, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		service:     service,
		maxFileSize: maxFileSize,
		logger:      logger,
	}
}

// Upscale accepts a multipart upload (field "image") and returns the
// id of the queued task.
func (h *TaskHandler) Upscale(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		h.handleError(w, "Failed to parse form", err, traceID, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		h.handleError(w, "Failed to get image field", err, traceID, http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		h.handleError(w, "File too large", validation.ErrFileTooLarge, traceID, http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.handleError(w, "Failed to read upload", err, traceID, http.StatusInternalServerError)
		return
	}

	imageType, err := validation.DetectImageType(data)
	if err != nil {
		h.handleError(w, "Invalid image", err, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.Submit(r.Context(), traceID, data, sanitizeFilename(header.Filename), imageType.ContentType())
	if err != nil {
		h.handleError(w, "Failed to submit task", err, traceID, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Task submitted",
		zap.String("trace_id", traceID),
		zap.String("task_id", resp.TaskID),
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(data)),
	)

	h.respondJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) Status(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	taskID := chi.URLParam(r, "task_id")
	if taskID == "" {
		h.handleError(w, "Task ID is required", nil, traceID, http.StatusBadRequest)
		return
	}

	resp, err := h.service.Status(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, dto.ErrTaskNotFound) {
			h.handleError(w, "Task not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to get task status", err, traceID, http.StatusInternalServerError)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// File streams a processed blob back with its stored content type.
func (h *TaskHandler) File(w http.ResponseWriter, r *http.Request) {
	traceID := middleware.GetTraceID(r.Context())

	name := chi.URLParam(r, "file")
	if name == "" {
		h.handleError(w, "File name is required", nil, traceID, http.StatusBadRequest)
		return
	}

	blob, err := h.service.FetchResult(r.Context(), name)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			h.handleError(w, "File not found", err, traceID, http.StatusNotFound)
			return
		}
		h.handleError(w, "Failed to fetch file", err, traceID, http.StatusInternalServerError)
		return
	}

	contentType := blob.Meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}

func sanitizeFilename(filename string) string {
	return filepath.Base(filename)
}

func (h *TaskHandler) handleError(w http.ResponseWriter, message string, err error, traceID string, status int) {
	h.logger.Error(message,
		zap.String("trace_id", traceID),
		zap.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{
		Error:   message,
		TraceID: traceID,
	})
}

func (h *TaskHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
