package service

import (
	"context"
	"log/slog"

	"github.com/hiroki-koketsu/go-todo/internal/model"
	"github.com/hiroki-koketsu/go-todo/internal/repository"
)

// TaskService validates task input before it reaches the repository.
type TaskService struct {
	repo   repository.TaskRepository
	logger *slog.Logger
}

// NewTaskService creates a new TaskService.
func NewTaskService(repo repository.TaskRepository, logger *slog.Logger) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{repo: repo, logger: logger}
}

// List returns every task, newest first.
func (s *TaskService) List(ctx context.Context) ([]*model.Task, error) {
	return s.repo.List(ctx)
}

// Create validates the title and stores a new task.
func (s *TaskService) Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, req)
}

// Update validates the provided fields and applies them to the task with id.
func (s *TaskService) Update(ctx context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, req)
}

// Delete removes the task with id. Deleting a missing task is not an error.
func (s *TaskService) Delete(ctx context.Context, id string) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !found {
		s.logger.DebugContext(ctx, "delete of unknown task", slog.String("id", id))
	}
	return nil
}

// Count returns the number of stored tasks.
func (s *TaskService) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}

// EnsureConnected checks that the store is reachable.
func (s *TaskService) EnsureConnected(ctx context.Context) error {
	return s.repo.EnsureConnected(ctx)
}
