package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/digimart-backend/api/controllers"
	"github.com/angelmondragon/digimart-backend/api/routes"
	"github.com/angelmondragon/digimart-backend/internal/engine"
	squarewebhook "github.com/angelmondragon/digimart-backend/internal/webhooks/square"
	"github.com/angelmondragon/digimart-backend/pkg/config"
	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/instance"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/metrics"
	"github.com/angelmondragon/digimart-backend/pkg/migrate"
	"github.com/angelmondragon/digimart-backend/pkg/outbox"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/digimart-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	eng, err := engine.New(context.Background(), engine.Params{
		Config:  cfg,
		Logger:  logg,
		DB:      dbClient,
		Redis:   redisClient,
		Metrics: metrics.NewEngineMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build engine", err)
		os.Exit(1)
	}

	webhookService, err := squarewebhook.NewService(squarewebhook.ServiceParams{
		Payments: eng.Payments,
		Orders:   eng.Orders,
		Refunds:  eng.Refunds,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create square webhook service", err)
		os.Exit(1)
	}
	replayGuard, err := idempotency.NewManager(redisClient, cfg.Eventing.WebhookReplayTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook replay guard", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.Deps{
		Config: cfg,
		Logger: logg,
		Ready: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Gatherer:      prometheus.DefaultGatherer,
		Idempotency:   redisClient,
		RateLimits:    redisClient,
		ReplayGuard:   replayGuard,
		Orders:        eng.OrderViews,
		Checkout:      eng.Checkout,
		Payments:      eng.Payments,
		Fulfillment:   eng.Fulfillment,
		Cancellation:  eng.Cancellation,
		Balance:       eng.Balance,
		Payouts:       eng.Payouts,
		Sweeper:       eng.Sweeper,
		DeadLetters:   outbox.NewDeadLetters(dbClient.DB()),
		Notifications: eng.Notifications,
		SquareWebhook: webhookService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
