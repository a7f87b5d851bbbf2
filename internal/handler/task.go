package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/go-todo/internal/database"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	"github.com/hiroki-koketsu/go-todo/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-todo/internal/handler")

const (
	routeTodos = "/api/todos"
	routeTodo  = "/api/todos/{id}"

	maxBodyBytes = 1 << 20

	msgConnectionFailed = "database connection failed"
)

// TaskService is the task API's view of the service layer.
type TaskService interface {
	List(ctx context.Context) ([]*model.Task, error)
	Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error)
	Update(ctx context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error)
	Delete(ctx context.Context, id string) error
	EnsureConnected(ctx context.Context) error
}

// TaskHandler handles HTTP requests for tasks.
type TaskHandler struct {
	svc     TaskService
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewTaskHandler creates a new TaskHandler. metrics may be nil.
func NewTaskHandler(svc TaskService, logger *slog.Logger, metrics *telemetry.Metrics) *TaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskHandler{
		svc:     svc,
		logger:  logger,
		metrics: metrics,
	}
}

// Routes returns the chi router with task routes. Every route requires a
// reachable database.
func (h *TaskHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.RequireDatabase)

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)

	return r
}

// RequireDatabase rejects the request with 500 when the store cannot be reached.
func (h *TaskHandler) RequireDatabase(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if err := h.svc.EnsureConnected(ctx); err != nil {
			h.logger.ErrorContext(ctx, "database unavailable", slog.Any("error", err))
			respondError(w, http.StatusInternalServerError, msgConnectionFailed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// List returns all tasks, newest first.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.List")
	defer span.End()

	tasks, err := h.svc.List(ctx)
	if err != nil {
		status := h.fail(ctx, span, w, err, http.StatusInternalServerError, "failed to fetch todos")
		h.recordMetrics(ctx, http.MethodGet, routeTodos, status, start)
		return
	}
	if tasks == nil {
		tasks = []*model.Task{}
	}

	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	h.logger.InfoContext(ctx, "tasks listed", slog.Int("count", len(tasks)))

	respondJSON(w, http.StatusOK, tasks)
	h.recordMetrics(ctx, http.MethodGet, routeTodos, http.StatusOK, start)
}

// Create adds a new task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	ctx, span := tracer.Start(ctx, "TaskHandler.Create")
	defer span.End()

	body, err := readBody(w, r)
	if err != nil {
		status := h.fail(ctx, span, w, err, http.StatusBadRequest, "failed to create todo")
		h.recordMetrics(ctx, http.MethodPost, routeTodos, status, start)
		return
	}

	req, err := model.DecodeCreateTaskRequest(body)
	if err != nil {
		status := h.fail(ctx, span, w, err, http.StatusBadRequest, "failed to create todo")
		h.recordMetrics(ctx, http.MethodPost, routeTodos, status, start)
		return
	}

	task, err := h.svc.Create(ctx, req)
	if err != nil {
		status := h.fail(ctx, span, w, err, http.StatusBadRequest, "failed to create todo")
		h.recordMetrics(ctx, http.MethodPost, routeTodos, status, start)
		return
	}

	span.SetAttributes(attribute.String("task.id", task.ID))
	h.logger.InfoContext(ctx, "task created", slog.String("id", task.ID))

	respondJSON(w, http.StatusCreated, task)
	h.recordMetrics(ctx, http.MethodPost, routeTodos, http.StatusCreated, start)
}

// Update applies a partial update to a task.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "TaskHandler.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	body, err := readBody(w, r)
	if err != nil {
		status := h.fail(ctx, span, w, err, http.StatusBadRequest, "failed to update todo")
		h.recordMetrics(ctx, http.MethodPut, routeTodo, status, start)
		return
	}

	req, err := model.DecodeUpdateTaskRequest(body)
	if err != nil {
		status := h.fail(ctx, span, w, err, http.StatusBadRequest, "failed to update todo")
		h.recordMetrics(ctx, http.MethodPut, routeTodo, status, start)
		return
	}

	task, err := h.svc.Update(ctx, id, req)
	if err != nil {
		status := h.fail(ctx, span, w, err, http.StatusBadRequest, "failed to update todo")
		h.recordMetrics(ctx, http.MethodPut, routeTodo, status, start)
		return
	}

	h.logger.InfoContext(ctx, "task updated", slog.String("id", id))

	respondJSON(w, http.StatusOK, task)
	h.recordMetrics(ctx, http.MethodPut, routeTodo, http.StatusOK, start)
}

// Delete removes a task. Deleting an unknown id also answers 200.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id := chi.URLParam(r, "id")

	ctx, span := tracer.Start(ctx, "TaskHandler.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	if err := h.svc.Delete(ctx, id); err != nil {
		status := h.fail(ctx, span, w, err, http.StatusInternalServerError, "failed to delete todo")
		h.recordMetrics(ctx, http.MethodDelete, routeTodo, status, start)
		return
	}

	h.logger.InfoContext(ctx, "task deleted", slog.String("id", id))

	respondJSON(w, http.StatusOK, map[string]string{"message": "Deleted"})
	h.recordMetrics(ctx, http.MethodDelete, routeTodo, http.StatusOK, start)
}

// fail maps err to a status and message, writes the error response and
// returns the status. storeStatus is used for store failures.
func (h *TaskHandler) fail(ctx context.Context, span trace.Span, w http.ResponseWriter, err error, storeStatus int, storeMsg string) int {
	var (
		validationErr *model.ValidationError
		notFoundErr   *model.NotFoundError
	)

	switch {
	case errors.As(err, &validationErr):
		h.logger.WarnContext(ctx, "invalid request", slog.Any("error", err))
		respondError(w, http.StatusBadRequest, validationErr.Message)
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		h.logger.WarnContext(ctx, "task not found", slog.String("id", notFoundErr.ID))
		respondError(w, http.StatusNotFound, "todo not found")
		return http.StatusNotFound
	case errors.Is(err, database.ErrConnect):
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.ErrorContext(ctx, "database unavailable", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, msgConnectionFailed)
		return http.StatusInternalServerError
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.ErrorContext(ctx, storeMsg, slog.Any("error", err))
		respondError(w, storeStatus, storeMsg)
		return storeStatus
	}
}

func (h *TaskHandler) recordMetrics(ctx context.Context, method, route string, status int, start time.Time) {
	h.metrics.RecordRequest(ctx, method, route, status, start)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, model.ErrInvalidBody
	}
	return body, nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"message": message})
}
