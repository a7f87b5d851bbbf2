package model

import (
	"strings"
	"time"
)

// Task represents a todo item in the system.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateTaskRequest represents the request body for creating a task.
type CreateTaskRequest struct {
	Title string `json:"title"`
}

// UpdateTaskRequest represents the request body for updating a task.
// Nil fields are left untouched.
type UpdateTaskRequest struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// Validate checks the CreateTaskRequest and trims the title in place.
func (r *CreateTaskRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return ErrTitleRequired
	}
	return nil
}

// Validate checks the UpdateTaskRequest and trims the title in place when present.
func (r *UpdateTaskRequest) Validate() error {
	if r.Title == nil {
		return nil
	}
	title := strings.TrimSpace(*r.Title)
	if title == "" {
		return ErrTitleEmpty
	}
	r.Title = &title
	return nil
}

// Now returns the store timestamp for the current instant.
// Stores keep millisecond precision so every backend round-trips the same value.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
