package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/robertarktes/stadium-bookings/internal/app"
	"github.com/robertarktes/stadium-bookings/internal/completion"
	"github.com/robertarktes/stadium-bookings/internal/config"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.StoreBackend != config.StoreCRDB {
		log.Fatalf("completion worker needs the crdb store backend, got %q", cfg.StoreBackend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "stadium-completion-worker")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to build dependencies: %v", err)
	}
	defer deps.Close()

	worker := completion.NewWorker(deps.Store, deps.Service, logger, cfg.CompletionBatch)
	logger.WithField("interval", cfg.CompletionInterval.String()).Info("completion worker started")
	if err := worker.Run(ctx, cfg.CompletionInterval); err != nil && err != context.Canceled {
		logger.WithError(err).Error("completion worker stopped")
	}
	logger.Info("Shutdown completion worker")
}
