package model

import "fmt"

// ValidationError reports missing or invalid client input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NotFoundError reports that no task matches the given id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %q not found", e.ID)
}

// StoreError wraps a failure of the underlying database.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

var (
	ErrTitleRequired = &ValidationError{Field: "title", Message: "title is required"}
	ErrTitleEmpty    = &ValidationError{Field: "title", Message: "title must not be empty"}
)
