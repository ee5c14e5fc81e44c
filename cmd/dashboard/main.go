package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/churn-dashboard/internal/api/insight"
	"github.com/tjfontaine/churn-dashboard/internal/config"
	"github.com/tjfontaine/churn-dashboard/internal/dashboard"
	"github.com/tjfontaine/churn-dashboard/internal/server"
	"github.com/tjfontaine/churn-dashboard/internal/storage"
	"github.com/tjfontaine/churn-dashboard/internal/storage/memory"
	"github.com/tjfontaine/churn-dashboard/internal/storage/sqlite"
	"github.com/tjfontaine/churn-dashboard/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize OpenTelemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer("churn-dashboard", logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	predLog, err := openPredictionLog(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open prediction log: %v", err)
	}
	if predLog != nil {
		defer predLog.Close()
	}

	client := insight.NewClient(
		insight.WithBaseURL(cfg.Backend.BaseURL),
		insight.WithTimeout(cfg.Backend.TimeoutDuration()),
	)

	ctrl := dashboard.NewController(client, predLog, logger, cfg.Export.Threshold)

	// The dashboard serves requests even when the initial load fails;
	// the error banner travels in the /api/dashboard payload.
	loadCtx, loadCancel := context.WithTimeout(context.Background(), cfg.Backend.TimeoutDuration())
	if err := ctrl.Load(loadCtx); err != nil {
		logger.Error("initial dashboard load failed",
			slog.String("backend", cfg.Backend.BaseURL),
			slog.String("error", err.Error()),
		)
	}
	loadCancel()

	srv := server.New(cfg.Server.Port, logger)
	server.NewHandlers(ctrl, client, predLog, logger).Register(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("dashboard started",
		slog.Int("port", cfg.Server.Port),
		slog.String("backend", cfg.Backend.BaseURL),
		slog.String("storage", cfg.Storage.Type),
	)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	case <-sigChan:
	}

	logger.Info("Shutdown signal received, stopping server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Server shutdown complete")
}

// openPredictionLog selects the prediction log backend from config.
// Returns nil (logging disabled) for type "none".
func openPredictionLog(cfg *config.Config, logger *slog.Logger) (storage.PredictionLog, error) {
	switch cfg.Storage.Type {
	case "sqlite":
		store, err := sqlite.New(cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("prediction log enabled", slog.String("path", cfg.Storage.SQLite.Path))
		return store, nil
	case "none":
		return nil, nil
	default:
		return memory.New(), nil
	}
}
