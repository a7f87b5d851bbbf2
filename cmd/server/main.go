package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hiroki-koketsu/go-todo/internal/config"
	"github.com/hiroki-koketsu/go-todo/internal/cors"
	"github.com/hiroki-koketsu/go-todo/internal/handler"
	"github.com/hiroki-koketsu/go-todo/internal/repository"
	"github.com/hiroki-koketsu/go-todo/internal/service"
	"github.com/hiroki-koketsu/go-todo/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// Create a basic logger for startup (before OTel is initialized)
	startupLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		startupLogger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	startupLogger.Info("starting application",
		slog.String("service", cfg.ServiceName),
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Bool("otel", cfg.OTelEnabled),
	)

	ctx := context.Background()

	tel, err := telemetry.Setup(ctx, telemetry.Options{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
		Environment:  cfg.Environment,
	})
	if err != nil {
		startupLogger.Error("failed to initialize telemetry", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			startupLogger.Error("failed to shutdown telemetry", slog.Any("error", err))
		}
	}()
	logger := tel.Logger

	taskRepo, err := repository.Open(repository.Options{
		URL:      cfg.Database.ConnectionURL(),
		Database: cfg.Database.Name,
		Logger:   logger,
	})
	if err != nil {
		logger.Error("failed to open task store", slog.Any("error", err))
		os.Exit(1)
	}

	// A failed warmup is not fatal; requests reconnect lazily.
	if err := repository.Warm(ctx, taskRepo, cfg.Database.ConnectTimeout); err != nil {
		logger.Warn("database not reachable at startup", slog.Any("error", err))
	}

	taskService := service.NewTaskService(taskRepo, logger)

	metrics, err := telemetry.NewMetrics(tel.Meter, taskService.Count)
	if err != nil {
		logger.Error("failed to create metrics", slog.Any("error", err))
		os.Exit(1)
	}

	policy, err := cors.NewPolicy(cfg.CORSOrigins)
	if err != nil {
		logger.Error("invalid CORS configuration", slog.Any("error", err))
		os.Exit(1)
	}

	r := handler.NewRouter(
		handler.NewTaskHandler(taskService, logger, metrics),
		handler.NewSystemHandler(taskService.EnsureConnected, logger),
		policy,
	)

	otelHandler := otelhttp.NewHandler(r, "http-server",
		otelhttp.WithFilter(func(r *http.Request) bool {
			// Skip tracing for probes
			return r.URL.Path != "/health" && r.URL.Path != "/readyz"
		}),
	)

	server := newServer(":"+cfg.ServerPort, otelHandler)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-quit:
		logger.Info("shutting down server...")
	case err := <-serverErr:
		logger.Error("server error", slog.Any("error", err))
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", slog.Any("error", err))
	}
	if err := taskRepo.Close(shutdownCtx); err != nil {
		logger.Error("failed to close task store", slog.Any("error", err))
	}

	logger.Info("server stopped")
	if exitCode != 0 {
		cancel()
		_ = tel.Shutdown(context.Background())
		os.Exit(exitCode)
	}
}

// newServer leaves room past handler.RequestTimeout so the timeout response
// can still be written.
func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: handler.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
