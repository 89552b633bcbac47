package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	redisadapter "github.com/robertarktes/stadium-bookings/internal/adapters/redis"
	"github.com/robertarktes/stadium-bookings/internal/app"
	"github.com/robertarktes/stadium-bookings/internal/completion"
	"github.com/robertarktes/stadium-bookings/internal/config"
	httphandler "github.com/robertarktes/stadium-bookings/internal/http"
	"github.com/robertarktes/stadium-bookings/internal/idempotency"
	"github.com/robertarktes/stadium-bookings/internal/observability"
	"github.com/robertarktes/stadium-bookings/internal/payments"
	"github.com/robertarktes/stadium-bookings/internal/rateLimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.SetupOTel(ctx, cfg, "stadium-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	deps, err := app.Build(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to build dependencies: %v", err)
	}
	defer deps.Close()

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("failed to load time zone: %v", err)
	}

	var (
		catalog httphandler.RateLookup
		limiter httphandler.Limiter
		idemp   httphandler.IdempotencyStore
	)
	if deps.Catalog != nil {
		catalog = deps.Catalog
	}
	if deps.Redis != nil {
		limiter = rateLimit.NewRateLimiter(redisadapter.NewCache(deps.Redis))
		idemp = idempotency.NewIdempotency(redisadapter.NewIdempotency(deps.Redis), cfg.IdempotencyTTL)
	}

	handlers := httphandler.NewHandlers(deps.Service, catalog, payments.NewHandler(deps.Service, logger), loc, logger)
	for name, check := range deps.ReadyChecks {
		handlers.AddReadyCheck(name, check)
	}
	limits := httphandler.RateLimits{PerUser: cfg.RateLimitPerUser, PerIP: cfg.RateLimitPerIP, Period: time.Minute}
	r := httphandler.SetupRouter(handlers, logger, limiter, limits, idemp)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown Server ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	// The in-memory store is private to this process, so completion runs here.
	if cfg.StoreBackend == config.StoreMemory {
		worker := completion.NewWorker(deps.Store, deps.Service, logger, cfg.CompletionBatch)
		g.Go(func() error {
			if err := worker.Run(gctx, cfg.CompletionInterval); err != context.Canceled {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server stopped with error")
	}
	logger.Info("Server exiting")
}
