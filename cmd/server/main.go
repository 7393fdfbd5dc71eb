package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/copyleftdev/promptsearch/internal/config"
	apierrors "github.com/copyleftdev/promptsearch/internal/errors"
	"github.com/copyleftdev/promptsearch/internal/logging"
	"github.com/copyleftdev/promptsearch/internal/metrics"
	"github.com/copyleftdev/promptsearch/internal/server"
	"github.com/copyleftdev/promptsearch/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use standard logger as fallback if config loading fails
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize base logger
	logger, err := logging.NewLogger(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Create a service logger with additional fields
	serviceLogger := logger.WithFields(map[string]interface{}{
		"service": "promptsearch",
		"env":     cfg.Environment,
	})

	ctx := context.Background()

	store, err := storage.NewStore(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		serviceLogger.Fatal("Invalid storage configuration", map[string]interface{}{"error": err})
	}
	if err := store.Init(ctx); err != nil {
		serviceLogger.Fatal("Failed to initialize storage", map[string]interface{}{
			"driver": cfg.Storage.Driver,
			"error":  err,
		})
	}

	recorder := metrics.New()

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(serviceLogger))
	r.Use(apierrors.RecoveryMiddleware(serviceLogger))
	r.Use(middleware.Timeout(60 * time.Second))

	// Add metrics endpoint
	r.Handle("/metrics", recorder.Handler())

	// Create server instance with our logger
	srv := server.NewServer(cfg, serviceLogger,
		server.WithStore(store),
		server.WithRecorder(recorder),
	)
	srv.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start HTTP server
	go func() {
		serviceLogger.Info("Starting server", map[string]interface{}{
			"address":   httpServer.Addr,
			"storage":   cfg.Storage.Driver,
			"evaluator": cfg.Evaluator.URL,
		})

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serviceLogger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	serviceLogger.Info("Shutting down server...")

	// Create a deadline to wait for
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		serviceLogger.Error("Server forced to shutdown", map[string]interface{}{"error": err})
	}

	// Cancelled jobs still store their partial results
	if err := srv.Close(); err != nil {
		serviceLogger.Error("error closing server resources", map[string]interface{}{"error": err})
	}
	if err := store.Close(); err != nil {
		serviceLogger.Error("error closing store", map[string]interface{}{"error": err})
	}

	serviceLogger.Info("server exited properly")
}
