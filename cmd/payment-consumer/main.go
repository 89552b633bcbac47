package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/stadium-bookings/internal/adapters/rabbit"
	"github.com/robertarktes/stadium-bookings/internal/app"
	"github.com/robertarktes/stadium-bookings/internal/config"
	"github.com/robertarktes/stadium-bookings/internal/observability"
	"github.com/robertarktes/stadium-bookings/internal/payments"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.StoreBackend != config.StoreCRDB || cfg.RabbitURL == "" {
		log.Fatal("payment consumer needs the crdb store backend and RABBIT_URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "stadium-payment-consumer")
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

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	consumer, err := rabbit.NewConsumer(conn, cfg.PaymentQueue, 16)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to consume %s: %v", cfg.PaymentQueue, err)
	}

	handler := payments.NewHandler(deps.Service, logger)
	logger.WithField("queue", cfg.PaymentQueue).Info("payment consumer started")
	if err := handler.Consume(ctx, deliveries); err != nil && err != context.Canceled {
		logger.WithError(err).Error("payment consumer stopped")
	}
	logger.Info("Shutdown payment consumer")
}
