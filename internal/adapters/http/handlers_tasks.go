package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/justinzzc/vision-box/internal/application"
	"github.com/justinzzc/vision-box/internal/contracts"
	"github.com/justinzzc/vision-box/internal/domain"
)

func (h *Handler) submitTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "submit_task")
		return
	}
	var req contracts.SubmitTaskRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "submit_task", err)
		return
	}
	if req.ModelName == "" {
		req.ModelName = domain.DefaultModel
	}
	if req.ConfidenceThreshold == 0 {
		req.ConfidenceThreshold = 0.5
	}
	task, err := h.service.SubmitTask(r.Context(), actor, application.SubmitTaskInput{
		TaskName:            req.TaskName,
		FileReference:       req.FileReference,
		ModelName:           req.ModelName,
		ConfidenceThreshold: req.ConfidenceThreshold,
		IoUThreshold:        req.IoUThreshold,
		MaxDetections:       req.MaxDetections,
		ClassFilter:         req.ClassFilter,
	})
	if err != nil {
		writeMappedError(r.Context(), w, "submit_task", err)
		return
	}
	writeSuccess(w, http.StatusAccepted, task)
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "get_task")
		return
	}
	task, err := h.service.GetTask(r.Context(), actor, chi.URLParam(r, "task_id"))
	if err != nil {
		writeMappedError(r.Context(), w, "get_task", err)
		return
	}
	writeSuccess(w, http.StatusOK, task)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "list_tasks")
		return
	}
	page := parseIntDefault(r.URL.Query().Get("page"), 1)
	pageSize := parseIntDefault(r.URL.Query().Get("page_size"), 20)
	status := domain.TaskStatus(r.URL.Query().Get("status"))

	tasks, total, err := h.service.ListTasks(r.Context(), actor, status, page, pageSize)
	if err != nil {
		writeMappedError(r.Context(), w, "list_tasks", err)
		return
	}
	writePage(w, http.StatusOK, tasks, total, page, pageSize)
}

func (h *Handler) cancelTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		writeMissingActorError(r.Context(), w, "cancel_task")
		return
	}
	if err := h.service.CancelTask(r.Context(), actor, chi.URLParam(r, "task_id")); err != nil {
		writeMappedError(r.Context(), w, "cancel_task", err)
		return
	}
	writeMessage(w, http.StatusOK, "Task cancelled")
}
