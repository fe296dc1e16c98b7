package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/attachments/internal/app"
	"github.com/allisson/attachments/internal/config"
	"github.com/allisson/attachments/internal/http"
	"github.com/allisson/attachments/internal/keyvault/worker"
)

const shutdownTimeout = 30 * time.Second

// RunServer starts the API server, the metrics server and the expired-key cleanup worker.
// Blocks until receiving SIGINT/SIGTERM or encountering a fatal error, then shuts
// everything down and waits for pending key access updates.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	// Ensure cleanup on exit
	defer closeContainer(container, logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, err := buildAPIServer(ctx, container, cfg)
	if err != nil {
		return err
	}

	var metricsServer *http.MetricsServer
	if cfg.MetricsEnabled {
		metricsServer, err = container.MetricsServer()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics server: %w", err)
		}
	}

	scheduler, err := container.CleanupScheduler()
	if err != nil {
		return fmt.Errorf("failed to initialize key cleanup worker: %w", err)
	}

	serverErr := make(chan error, 2)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- fmt.Errorf("api server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		runScheduler(ctx, scheduler, logger)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serverErr:
		logger.Error("server error, initiating shutdown", slog.Any("error", runErr))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownErrors := []error{runErr}
	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	<-schedulerDone

	return errors.Join(shutdownErrors...)
}

func buildAPIServer(ctx context.Context, container *app.Container, cfg *config.Config) (*http.Server, error) {
	server, err := container.HTTPServer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	attachmentHandler, err := container.AttachmentHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize attachment handler: %w", err)
	}

	serverKeyHandler, err := container.ServerKeyHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize server key handler: %w", err)
	}

	metricsProvider, err := container.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics provider: %w", err)
	}

	server.SetupRouter(ctx, cfg, attachmentHandler, serverKeyHandler, metricsProvider)
	return server, nil
}

func runScheduler(ctx context.Context, scheduler *worker.CleanupScheduler, logger *slog.Logger) {
	if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("key cleanup worker stopped", slog.Any("error", err))
	}
}
