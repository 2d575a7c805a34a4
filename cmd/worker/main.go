package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/digimart-backend/internal/notifications"
	"github.com/angelmondragon/digimart-backend/pkg/config"
	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/digimart-backend/pkg/pubsub"
	"github.com/angelmondragon/digimart-backend/pkg/redis"
)

const serviceName = "worker"

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
		logg.Error(ctx, "worker.stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker.shutdown")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()

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

	subscription := topics.Subscriber(cfg.PubSub.NotificationSubscription)
	if subscription == nil {
		return errors.New("notification subscription not configured")
	}
	seen, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return fmt.Errorf("idempotency: %w", err)
	}
	consumer, err := notifications.NewConsumer(notifications.NewRepository(dbClient.DB()), subscription, seen, logg)
	if err != nil {
		return fmt.Errorf("consumer: %w", err)
	}

	svc, err := NewService(logg, consumer,
		Dependency{Name: "database", Check: dbClient},
		Dependency{Name: "redis", Check: redisClient},
		Dependency{Name: "pubsub", Check: topics},
	)
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}
