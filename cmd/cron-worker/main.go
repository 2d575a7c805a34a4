package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/digimart-backend/internal/cron"
	"github.com/angelmondragon/digimart-backend/internal/engine"
	"github.com/angelmondragon/digimart-backend/pkg/config"
	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/metrics"
	"github.com/angelmondragon/digimart-backend/pkg/migrate"
	"github.com/angelmondragon/digimart-backend/pkg/redis"
)

const (
	serviceName      = "cron-worker"
	lockPrefixFormat = "dm:cron-worker:lock:%s"
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
		logg.Error(ctx, "cron.worker_stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron.worker_shutdown")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	eng, err := engine.New(ctx, engine.Params{
		Config:  cfg,
		Logger:  logg,
		DB:      dbClient,
		Redis:   redisClient,
		Metrics: metrics.NewEngineMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	locker, err := cron.NewRedisLocker(redisClient, lockPrefix(cfg.App.Env))
	if err != nil {
		return fmt.Errorf("cron locker: %w", err)
	}
	entries, err := scheduleJobs(cfg, logg, eng)
	if err != nil {
		return fmt.Errorf("cron jobs: %w", err)
	}
	scheduler, err := cron.NewScheduler(cron.SchedulerParams{
		Logger:  logg,
		Locks:   locker,
		Metrics: metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Tick:    cfg.Cron.Tick,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	logg.Info(logg.WithField(ctx, "jobs", scheduler.Jobs()), "cron.worker_started")
	return scheduler.Run(ctx)
}

func lockPrefix(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockPrefixFormat, env)
}

func scheduleJobs(cfg *config.Config, logg *logger.Logger, eng *engine.Engine) ([]cron.Entry, error) {
	paymentSync, err := cron.NewPaymentSyncJob(cron.PaymentSyncJobParams{
		Logger: logg,
		Orders: eng.Orders,
		Sync:   eng.Payments,
		After:  cfg.Cron.PaymentSyncAfter,
		Batch:  cfg.Cron.PaymentSyncBatch,
	})
	if err != nil {
		return nil, err
	}
	refundReconcile, err := cron.NewRefundReconcileJob(cron.RefundReconcileJobParams{
		Logger:  logg,
		Orders:  eng.Orders,
		Refunds: eng.Refunds,
		MinAge:  cfg.Cron.RefundReconcileAge,
	})
	if err != nil {
		return nil, err
	}
	payoutReconcile, err := cron.NewPayoutReconcileJob(logg, eng.Payouts)
	if err != nil {
		return nil, err
	}
	dedupSweep, err := cron.NewDedupSweepJob(eng.Sweeper)
	if err != nil {
		return nil, err
	}
	outboxRetention, err := cron.NewOutboxRetentionJob(logg, eng.OutboxRepo, cfg.Outbox.Retention)
	if err != nil {
		return nil, err
	}
	notificationCleanup, err := cron.NewNotificationCleanupJob(logg, eng.NotifyRepo, cfg.Cron.NotificationRetention)
	if err != nil {
		return nil, err
	}
	c := cfg.Cron
	return []cron.Entry{
		{Job: paymentSync, Every: c.PaymentSyncEvery},
		{Job: refundReconcile, Every: c.RefundReconcileEvery},
		{Job: payoutReconcile, Every: c.PayoutReconcileEvery},
		{Job: dedupSweep, Every: c.DedupSweepEvery},
		{Job: outboxRetention, Every: c.OutboxRetentionEvery},
		{Job: notificationCleanup, Every: c.NotificationCleanupEvery},
	}, nil
}
