package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/model"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/go-todo/internal/repository")

// TaskRepository persists tasks. Every method is a single store call.
type TaskRepository interface {
	// List returns all tasks, newest first.
	List(ctx context.Context) ([]*model.Task, error)
	// Create stores a new task from an already validated request.
	Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error)
	// Update applies the non-nil fields of req. It returns *model.NotFoundError
	// when no task has the id.
	Update(ctx context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error)
	// Delete removes the task and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// Count returns the number of stored tasks.
	Count(ctx context.Context) (int64, error)
	// EnsureConnected makes sure the backing database is reachable.
	EnsureConnected(ctx context.Context) error
	// Close releases the backing database.
	Close(ctx context.Context) error
}

// Options configures Open.
type Options struct {
	URL      string
	Database string
	Logger   *slog.Logger
}

// Open returns the TaskRepository selected by the scheme of opts.URL.
// It does not connect; the first EnsureConnected does.
func Open(opts Options) (TaskRepository, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	url := strings.TrimSpace(opts.URL)
	switch {
	case url == "" || strings.HasPrefix(url, "memory://"):
		return NewMemoryRepository(), nil
	case strings.HasPrefix(url, "mongodb://"), strings.HasPrefix(url, "mongodb+srv://"):
		return NewMongoRepository(url, opts.Database, logger), nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return NewSQLRepository(DialectPostgres, url, logger), nil
	case strings.HasPrefix(url, "sqlite://"):
		return NewSQLRepository(DialectSQLite, strings.TrimPrefix(url, "sqlite://"), logger), nil
	case strings.HasPrefix(url, "file:"):
		return NewSQLRepository(DialectSQLite, url, logger), nil
	default:
		return nil, fmt.Errorf("unsupported database url scheme: %q", redact(url))
	}
}

// Warm establishes the store connection before traffic arrives. Stores
// without a remote connection return nil immediately.
func Warm(ctx context.Context, repo TaskRepository, maxElapsed time.Duration) error {
	w, ok := repo.(interface {
		Warm(ctx context.Context, maxElapsed time.Duration) error
	})
	if !ok {
		return nil
	}
	return w.Warm(ctx, maxElapsed)
}

// redact keeps only the scheme of a connection string for error messages.
func redact(url string) string {
	if i := strings.Index(url, "://"); i >= 0 {
		return url[:i+3] + "..."
	}
	return "..."
}
