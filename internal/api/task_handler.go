package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/dataset-forge/internal/api/shared"
	"github.com/phrazzld/dataset-forge/internal/platform/logger"
	"github.com/phrazzld/dataset-forge/internal/task"
)

// TaskService is the task API surface the handler depends on.
type TaskService interface {
	Create(ctx context.Context, spec task.CreateSpec) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*task.Task, error)
	List(ctx context.Context, q task.ListQuery) ([]*task.Task, int, error)
	Update(ctx context.Context, id uuid.UUID, u task.Update) (*task.Task, error)
	Abort(ctx context.Context, id uuid.UUID, reason string) (*task.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Ensure task.Service implements TaskService
var _ TaskService = (*task.Service)(nil)

// TaskHandler handles task-related HTTP requests.
type TaskHandler struct {
	service TaskService
	logger  *slog.Logger
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service TaskService, log *slog.Logger) *TaskHandler {
	if log == nil {
		log = slog.Default()
	}
	return &TaskHandler{
		service: service,
		logger:  log.With("component", "task_handler"),
	}
}

// Routes registers the task endpoints on r.
func (h *TaskHandler) Routes(r chi.Router) {
	r.Route("/projects/{projectID}/tasks", func(r chi.Router) {
		r.Post("/", h.CreateTask)
		r.Get("/", h.ListTasks)
	})
	r.Route("/tasks/{taskID}", func(r chi.Router) {
		r.Get("/", h.GetTask)
		r.Patch("/", h.UpdateTask)
		r.Delete("/", h.DeleteTask)
		r.Post("/abort", h.AbortTask)
	})
}

// CreateTask handles POST /projects/{projectID}/tasks. It answers 202 as
// soon as the task exists; clients poll GET /tasks/{taskID}.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	projectID, err := getProjectID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req CreateTaskRequest
	if !h.decodeRequest(w, r, &req, false) {
		return
	}

	id, err := h.service.Create(r.Context(), task.CreateSpec{
		ProjectID:  projectID,
		TaskType:   task.Type(req.TaskType),
		ModelInfo:  req.ModelInfo,
		Language:   req.Language,
		Detail:     req.Detail,
		TotalCount: req.TotalCount,
		Note:       req.Note,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	log.Debug("task accepted", "task_id", id, "project_id", projectID, "task_type", req.TaskType)
	shared.RespondWithJSON(w, r, http.StatusAccepted, CreateTaskResponse{TaskID: id})
}

// GetTask handles GET /tasks/{taskID}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "taskID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	t, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, newTaskResponse(t))
}

// ListTasks handles GET /projects/{projectID}/tasks.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	projectID, err := getProjectID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	q, err := parseListQuery(r, projectID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	tasks, total, err := h.service.List(r.Context(), q)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	q = q.Normalize()
	resp := ListTasksResponse{
		Tasks: make([]TaskResponse, 0, len(tasks)),
		Total: total,
		Page:  q.Page,
		Limit: q.Limit,
	}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, newTaskResponse(t))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// UpdateTask handles PATCH /tasks/{taskID}. Moving a task to a terminal
// status stamps its end time; a task that already finished answers 409.
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "taskID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req UpdateTaskRequest
	if !h.decodeRequest(w, r, &req, false) {
		return
	}

	t, err := h.service.Update(r.Context(), id, req.ToUpdate())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, newTaskResponse(t))
}

// AbortTask handles POST /tasks/{taskID}/abort. The body is optional.
func (h *TaskHandler) AbortTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "taskID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req AbortTaskRequest
	if !h.decodeRequest(w, r, &req, true) {
		return
	}

	t, err := h.service.Abort(r.Context(), id, req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, newTaskResponse(t))
}

// DeleteTask handles DELETE /tasks/{taskID}.
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "taskID")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeRequest decodes and validates the body into req, writing the error
// response itself when it fails. optional allows an empty body.
func (h *TaskHandler) decodeRequest(w http.ResponseWriter, r *http.Request, req any, optional bool) bool {
	err := shared.DecodeJSON(w, r, req)
	switch {
	case err == nil:
	case optional && errors.Is(err, shared.ErrEmptyBody):
	case errors.Is(err, shared.ErrEmptyBody), errors.Is(err, task.ErrInvalidInput):
		h.respondError(w, r, err)
		return false
	default:
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return false
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}

func (h *TaskHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
