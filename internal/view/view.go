// Package view keeps the client's copy of the task list in step with the API.
//
// The mirror only changes after the server confirms an operation, with one
// exception: toggling flips the task immediately and reverts it if the
// server rejects the change.
package view

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/hiroki-koketsu/go-todo/internal/model"
)

// ErrUnknownTask is returned when an operation names a task the view does not hold.
var ErrUnknownTask = errors.New("task not in view")

// API is the subset of the task API the view drives.
type API interface {
	List(ctx context.Context) ([]*model.Task, error)
	Create(ctx context.Context, title string) (*model.Task, error)
	Update(ctx context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error)
	Delete(ctx context.Context, id string) error
}

// View is an ordered, newest-first mirror of the last successful List.
// It is safe for concurrent use.
type View struct {
	api    API
	logger *log.Logger

	mu    sync.RWMutex
	tasks []model.Task
}

// New returns an empty View. Failures are logged to logger.
func New(api API, logger *log.Logger) *View {
	if logger == nil {
		logger = log.Default()
	}
	return &View{api: api, logger: logger}
}

// Tasks returns a copy of the mirrored tasks.
func (v *View) Tasks() []model.Task {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]model.Task, len(v.tasks))
	copy(out, v.tasks)
	return out
}

// Len returns the number of mirrored tasks.
func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.tasks)
}

// Load replaces the mirror with the server's list. On failure the previous
// mirror is kept.
func (v *View) Load(ctx context.Context) error {
	tasks, err := v.api.List(ctx)
	if err != nil {
		v.logger.Error("load tasks", "err", err)
		return err
	}

	mirror := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if t != nil {
			mirror = append(mirror, *t)
		}
	}

	v.mu.Lock()
	v.tasks = mirror
	v.mu.Unlock()

	v.logger.Debug("tasks loaded", "count", len(mirror))
	return nil
}

// Add creates a task and prepends it. A blank title is ignored without
// calling the API.
func (v *View) Add(ctx context.Context, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil
	}

	task, err := v.api.Create(ctx, title)
	if err != nil {
		v.logger.Error("create task", "title", title, "err", err)
		return err
	}

	v.mu.Lock()
	v.tasks = append([]model.Task{*task}, v.tasks...)
	v.mu.Unlock()
	return nil
}

// Toggle flips the completed flag of the task with id and persists it,
// reverting the flip if the API call fails.
func (v *View) Toggle(ctx context.Context, id string) error {
	completed, err := v.BeginToggle(id)
	if err != nil {
		return err
	}
	return v.FinishToggle(ctx, id, completed)
}

// BeginToggle flips the task locally and returns the new flag value.
// Callers must follow with FinishToggle.
func (v *View) BeginToggle(id string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := v.indexLocked(id)
	if i < 0 {
		return false, ErrUnknownTask
	}
	v.tasks[i].Completed = !v.tasks[i].Completed
	return v.tasks[i].Completed, nil
}

// FinishToggle sends the flag set by BeginToggle. On success the task is
// replaced by the server's copy; on failure the flip is reverted unless the
// task has changed since.
func (v *View) FinishToggle(ctx context.Context, id string, completed bool) error {
	task, err := v.api.Update(ctx, id, &model.UpdateTaskRequest{Completed: &completed})

	v.mu.Lock()
	defer v.mu.Unlock()

	i := v.indexLocked(id)
	if err != nil {
		if i >= 0 && v.tasks[i].Completed == completed {
			v.tasks[i].Completed = !completed
		}
		v.logger.Error("toggle task", "id", id, "completed", completed, "err", err)
		return err
	}
	if i >= 0 {
		v.tasks[i] = *task
	}
	return nil
}

// Remove deletes the task with id and drops it from the mirror.
func (v *View) Remove(ctx context.Context, id string) error {
	if err := v.api.Delete(ctx, id); err != nil {
		v.logger.Error("delete task", "id", id, "err", err)
		return err
	}

	v.mu.Lock()
	if i := v.indexLocked(id); i >= 0 {
		v.tasks = append(v.tasks[:i], v.tasks[i+1:]...)
	}
	v.mu.Unlock()
	return nil
}

func (v *View) indexLocked(id string) int {
	for i := range v.tasks {
		if v.tasks[i].ID == id {
			return i
		}
	}
	return -1
}
