package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/digimart-backend/internal/analytics/router"
	"github.com/angelmondragon/digimart-backend/internal/analytics/types"
	"github.com/angelmondragon/digimart-backend/internal/analytics/worker"
	"github.com/angelmondragon/digimart-backend/internal/analytics/writer"
	"github.com/angelmondragon/digimart-backend/pkg/bigquery"
	"github.com/angelmondragon/digimart-backend/pkg/config"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/digimart-backend/pkg/pubsub"
	"github.com/angelmondragon/digimart-backend/pkg/redis"
)

const (
	serviceName = "analytics-worker"
	// flushTimeout bounds the final write of buffered rows after the consumer stops.
	flushTimeout = 10 * time.Second
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(context.Background(), "config.load_failed", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName
	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": serviceName})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "analytics.worker_stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "analytics.worker_shutdown")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	topics, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer topics.Close()

	warehouse, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg, bigquery.TableSpec{
		Name:           cfg.BigQuery.MarketplaceEventsTable,
		Row:            types.MarketplaceEventRow{},
		PartitionField: "occurred_at",
	})
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	defer warehouse.Close()

	subscription := topics.Subscriber(cfg.PubSub.AnalyticsSubscription)
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}
	seen, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency: %w", err)
	}
	rows, err := writer.New(warehouse, writer.Config{
		Table:     cfg.BigQuery.MarketplaceEventsTable,
		BatchSize: cfg.BigQuery.BatchSize,
	})
	if err != nil {
		return fmt.Errorf("row writer: %w", err)
	}
	handler, err := router.NewRouter(rows, logg, nil)
	if err != nil {
		return fmt.Errorf("event router: %w", err)
	}
	consumer, err := worker.NewConsumer(subscription, handler, seen, logg)
	if err != nil {
		return fmt.Errorf("consumer: %w", err)
	}

	logg.Info(ctx, "analytics.worker_started")
	runErr := consumer.Run(ctx)

	// ctx is done by now, so the flush gets its own deadline.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	if err := rows.Flush(flushCtx); err != nil {
		logg.Error(ctx, "analytics.flush_failed", err)
	}
	return runErr
}
