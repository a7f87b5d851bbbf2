package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MemoryRepository provides an in-memory storage for tasks.
type MemoryRepository struct {
	mu    sync.RWMutex
	tasks map[string]*memoryTask
	seq   uint64
}

// memoryTask keeps the insertion order so tasks created within the same
// millisecond still list newest first.
type memoryTask struct {
	task model.Task
	seq  uint64
}

// NewMemoryRepository creates a new MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks: make(map[string]*memoryTask),
	}
}

// Create adds a new task to the repository.
func (r *MemoryRepository) Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	_, span := tracer.Start(ctx, "MemoryRepository.Create",
		trace.WithAttributes(attribute.String("task.title", req.Title)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	now := model.Now()
	r.seq++
	entry := &memoryTask{
		task: model.Task{
			ID:        uuid.New().String(),
			Title:     req.Title,
			Completed: false,
			CreatedAt: now,
			UpdatedAt: now,
		},
		seq: r.seq,
	}

	r.tasks[entry.task.ID] = entry

	span.SetAttributes(attribute.String("task.id", entry.task.ID))
	task := entry.task
	return &task, nil
}

// List returns all tasks in the repository, newest first.
func (r *MemoryRepository) List(ctx context.Context) ([]*model.Task, error) {
	_, span := tracer.Start(ctx, "MemoryRepository.List")
	defer span.End()

	r.mu.RLock()
	entries := make([]*memoryTask, 0, len(r.tasks))
	for _, entry := range r.tasks {
		entries = append(entries, entry)
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.task.CreatedAt.Equal(b.task.CreatedAt) {
			return a.task.CreatedAt.After(b.task.CreatedAt)
		}
		return a.seq > b.seq
	})

	tasks := make([]*model.Task, 0, len(entries))
	for _, entry := range entries {
		task := entry.task
		tasks = append(tasks, &task)
	}

	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	return tasks, nil
}

// Update modifies an existing task.
func (r *MemoryRepository) Update(ctx context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error) {
	_, span := tracer.Start(ctx, "MemoryRepository.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.tasks[id]
	if !ok {
		span.SetAttributes(attribute.Bool("task.found", false))
		return nil, &model.NotFoundError{ID: id}
	}

	if req.Title != nil {
		entry.task.Title = *req.Title
	}
	if req.Completed != nil {
		entry.task.Completed = *req.Completed
	}
	entry.task.UpdatedAt = model.Now()

	span.SetAttributes(attribute.Bool("task.found", true))
	task := entry.task
	return &task, nil
}

// Delete removes a task from the repository.
func (r *MemoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	_, span := tracer.Start(ctx, "MemoryRepository.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.tasks[id]
	delete(r.tasks, id)
	span.SetAttributes(attribute.Bool("task.found", ok))
	return ok, nil
}

// Count returns the current number of tasks.
func (r *MemoryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.tasks)), nil
}

// EnsureConnected always succeeds; there is nothing to connect to.
func (r *MemoryRepository) EnsureConnected(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (r *MemoryRepository) Close(ctx context.Context) error {
	return nil
}
