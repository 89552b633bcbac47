package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/stadium-bookings/internal/adapters/crdb"
	"github.com/robertarktes/stadium-bookings/internal/adapters/rabbit"
	"github.com/robertarktes/stadium-bookings/internal/config"
	"github.com/robertarktes/stadium-bookings/internal/observability"
	"github.com/robertarktes/stadium-bookings/internal/outbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.CRDBDSN == "" || cfg.RabbitURL == "" {
		log.Fatal("outbox publisher needs CRDB_DSN and RABBIT_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "stadium-outbox-publisher")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	rabbitPub, err := rabbit.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	defer rabbitPub.Close()

	publisher := outbox.NewPublisher(repo, rabbitPub, logger, cfg.OutboxBatch)
	logger.Info("Outbox publisher started")
	if err := publisher.Run(ctx, cfg.OutboxInterval); err != nil && err != context.Canceled {
		logger.WithError(err).Error("outbox publisher stopped")
	}
	logger.Info("Shutdown outbox publisher")
}
