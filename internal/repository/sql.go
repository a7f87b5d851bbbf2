package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/hiroki-koketsu/go-todo/internal/database"
	"github.com/hiroki-koketsu/go-todo/internal/model"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL driver, placeholder format and table bootstrap.
type Dialect struct {
	Name        string
	DriverName  string
	Placeholder sq.PlaceholderFormat
	Schema      string
	// MaxOpenConns limits the pool; 0 means unlimited.
	MaxOpenConns int
}

var (
	DialectPostgres = Dialect{
		Name:        "postgres",
		DriverName:  "pgx",
		Placeholder: sq.Dollar,
		Schema: `
CREATE TABLE IF NOT EXISTS tasks (
	seq BIGSERIAL PRIMARY KEY,
	id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	completed BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks (created_at DESC);
`,
	}

	// SQLite allows a single writer; one connection also keeps ":memory:"
	// databases alive across calls.
	DialectSQLite = Dialect{
		Name:         "sqlite",
		DriverName:   "sqlite",
		Placeholder:  sq.Question,
		MaxOpenConns: 1,
		Schema: `
CREATE TABLE IF NOT EXISTS tasks (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	completed BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks (created_at DESC);
`,
	}
)

var taskColumns = []string{"id", "title", "completed", "created_at", "updated_at"}

// SQLRepository stores tasks in a relational table through database/sql.
type SQLRepository struct {
	conn    *database.Connector[*sql.DB]
	dialect Dialect
	builder sq.StatementBuilderType
	logger  *slog.Logger
}

// NewSQLRepository creates a SQLRepository. The pool is opened and the table
// bootstrapped on first use.
func NewSQLRepository(dialect Dialect, dsn string, logger *slog.Logger) *SQLRepository {
	driver := database.Driver[*sql.DB]{
		Dial: func(ctx context.Context) (*sql.DB, error) {
			db, err := sql.Open(dialect.DriverName, dsn)
			if err != nil {
				return nil, err
			}
			if dialect.MaxOpenConns > 0 {
				db.SetMaxOpenConns(dialect.MaxOpenConns)
			}
			if _, err := db.ExecContext(ctx, dialect.Schema); err != nil {
				db.Close()
				return nil, fmt.Errorf("bootstrap tasks table: %w", err)
			}
			return db, nil
		},
		Ping: func(ctx context.Context, db *sql.DB) error {
			return db.PingContext(ctx)
		},
		Close: func(_ context.Context, db *sql.DB) error {
			return db.Close()
		},
	}
	return &SQLRepository{
		conn:    database.NewConnector(dialect.Name, driver, logger),
		dialect: dialect,
		builder: sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
		logger:  logger,
	}
}

// connector exposes the cached pool to tests.
func (r *SQLRepository) connector() *database.Connector[*sql.DB] {
	return r.conn
}

func (r *SQLRepository) db(ctx context.Context) (*sql.DB, error) {
	db, err := r.conn.Handle(ctx)
	if err != nil {
		return nil, &model.StoreError{Op: "connect", Err: err}
	}
	return db, nil
}

// List returns all tasks ordered by created_at descending.
func (r *SQLRepository) List(ctx context.Context) ([]*model.Task, error) {
	ctx, span := tracer.Start(ctx, "SQLRepository.List")
	defer span.End()

	db, err := r.db(ctx)
	if err != nil {
		return nil, spanError(span, err)
	}

	query, args, err := r.builder.
		Select(taskColumns...).
		From("tasks").
		OrderBy("created_at DESC", "seq DESC").
		ToSql()
	if err != nil {
		return nil, spanError(span, &model.StoreError{Op: "list", Err: err})
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, spanError(span, &model.StoreError{Op: "list", Err: err})
	}
	defer rows.Close()

	tasks := make([]*model.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, spanError(span, &model.StoreError{Op: "list", Err: err})
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, spanError(span, &model.StoreError{Op: "list", Err: err})
	}

	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	return tasks, nil
}

// Create inserts a new row.
func (r *SQLRepository) Create(ctx context.Context, req *model.CreateTaskRequest) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "SQLRepository.Create",
		trace.WithAttributes(attribute.String("task.title", req.Title)),
	)
	defer span.End()

	db, err := r.db(ctx)
	if err != nil {
		return nil, spanError(span, err)
	}

	now := model.Now()
	task := &model.Task{
		ID:        uuid.New().String(),
		Title:     req.Title,
		Completed: false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	query, args, err := r.builder.
		Insert("tasks").
		Columns(taskColumns...).
		Values(task.ID, task.Title, task.Completed, task.CreatedAt, task.UpdatedAt).
		ToSql()
	if err != nil {
		return nil, spanError(span, &model.StoreError{Op: "create", Err: err})
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return nil, spanError(span, &model.StoreError{Op: "create", Err: err})
	}

	span.SetAttributes(attribute.String("task.id", task.ID))
	return task, nil
}

// Update applies the provided fields with a single UPDATE ... RETURNING.
func (r *SQLRepository) Update(ctx context.Context, id string, req *model.UpdateTaskRequest) (*model.Task, error) {
	ctx, span := tracer.Start(ctx, "SQLRepository.Update",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	db, err := r.db(ctx)
	if err != nil {
		return nil, spanError(span, err)
	}

	stmt := r.builder.
		Update("tasks").
		Set("updated_at", model.Now()).
		Where(sq.Eq{"id": id})
	if req.Title != nil {
		stmt = stmt.Set("title", *req.Title)
	}
	if req.Completed != nil {
		stmt = stmt.Set("completed", *req.Completed)
	}

	query, args, err := stmt.Suffix("RETURNING id, title, completed, created_at, updated_at").ToSql()
	if err != nil {
		return nil, spanError(span, &model.StoreError{Op: "update", Err: err})
	}

	task, err := scanTask(db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("task.found", false))
		return nil, &model.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, spanError(span, &model.StoreError{Op: "update", Err: err})
	}

	span.SetAttributes(attribute.Bool("task.found", true))
	return task, nil
}

// Delete removes the row if present.
func (r *SQLRepository) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "SQLRepository.Delete",
		trace.WithAttributes(attribute.String("task.id", id)),
	)
	defer span.End()

	db, err := r.db(ctx)
	if err != nil {
		return false, spanError(span, err)
	}

	query, args, err := r.builder.Delete("tasks").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, spanError(span, &model.StoreError{Op: "delete", Err: err})
	}
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, spanError(span, &model.StoreError{Op: "delete", Err: err})
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, spanError(span, &model.StoreError{Op: "delete", Err: err})
	}

	span.SetAttributes(attribute.Bool("task.found", n > 0))
	return n > 0, nil
}

// Count returns the number of rows.
func (r *SQLRepository) Count(ctx context.Context) (int64, error) {
	db, err := r.db(ctx)
	if err != nil {
		return 0, err
	}
	query, args, err := r.builder.Select("COUNT(*)").From("tasks").ToSql()
	if err != nil {
		return 0, &model.StoreError{Op: "count", Err: err}
	}
	var n int64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, &model.StoreError{Op: "count", Err: err}
	}
	return n, nil
}

// EnsureConnected pings the cached pool, reopening it if needed.
func (r *SQLRepository) EnsureConnected(ctx context.Context) error {
	if _, err := r.conn.EnsureConnected(ctx); err != nil {
		return &model.StoreError{Op: "connect", Err: err}
	}
	return nil
}

// Warm opens the pool ahead of the first request, retrying until maxElapsed.
func (r *SQLRepository) Warm(ctx context.Context, maxElapsed time.Duration) error {
	return r.conn.Warm(ctx, maxElapsed)
}

// Close closes the cached pool.
func (r *SQLRepository) Close(ctx context.Context) error {
	if err := r.conn.Close(ctx); err != nil {
		return fmt.Errorf("close %s: %w", r.dialect.Name, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*model.Task, error) {
	var (
		task      model.Task
		createdAt sqlTime
		updatedAt sqlTime
	)
	if err := row.Scan(&task.ID, &task.Title, &task.Completed, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	task.CreatedAt = createdAt.Time.UTC()
	task.UpdatedAt = updatedAt.Time.UTC()
	return &task, nil
}

// sqlTime accepts timestamps as native values or as the text SQLite returns
// when it has no declared column type to go by (RETURNING clauses).
type sqlTime struct {
	time.Time
}

var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *sqlTime) parse(s string) error {
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}
