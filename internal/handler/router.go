package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hiroki-koketsu/go-todo/internal/cors"
)

// RequestTimeout bounds every request. The server's write timeout must exceed it.
const RequestTimeout = 10 * time.Second

// NewRouter assembles the HTTP surface: the task API under /api/todos plus
// the root banner, /health and /readyz.
func NewRouter(tasks *TaskHandler, system *SystemHandler, policy *cors.Policy) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(middleware.Timeout(RequestTimeout))
	r.Use(cors.Middleware(policy))

	r.Get("/", system.Root)
	r.Get("/health", system.Health)
	r.Get("/readyz", system.Readyz)

	r.Mount(routeTodos, tasks.Routes())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
