package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const readinessTimeout = time.Second

// SystemHandler serves the liveness and readiness endpoints.
type SystemHandler struct {
	ping   func(ctx context.Context) error
	logger *slog.Logger
}

// NewSystemHandler creates a SystemHandler. ping reports whether the store is reachable.
func NewSystemHandler(ping func(ctx context.Context) error, logger *slog.Logger) *SystemHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemHandler{ping: ping, logger: logger}
}

// Root answers the service banner.
func (h *SystemHandler) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "Todo API is live and well!",
		"status":  "Connected",
	})
}

// Health returns a health check response.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports 503 until the store answers a ping.
func (h *SystemHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		h.logger.WarnContext(ctx, "not ready", slog.Any("error", err))
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unavailable",
			"message": msgConnectionFailed,
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
