package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/digimart-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/digimart-backend/api/controllers/orders"
	payoutcontrollers "github.com/angelmondragon/digimart-backend/api/controllers/payouts"
	webhookcontrollers "github.com/angelmondragon/digimart-backend/api/controllers/webhooks"
	"github.com/angelmondragon/digimart-backend/api/middleware"
	"github.com/angelmondragon/digimart-backend/internal/balance"
	"github.com/angelmondragon/digimart-backend/internal/cancellation"
	"github.com/angelmondragon/digimart-backend/internal/checkout"
	"github.com/angelmondragon/digimart-backend/internal/fulfillment"
	"github.com/angelmondragon/digimart-backend/internal/notifications"
	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/internal/payments"
	"github.com/angelmondragon/digimart-backend/internal/payouts"
	"github.com/angelmondragon/digimart-backend/pkg/config"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/digimart-backend/pkg/redis"
)

type rateLimitStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type replayGuard interface {
	CheckAndMarkKey(ctx context.Context, consumer, id string) (bool, error)
	DeleteKey(ctx context.Context, consumer, id string) error
}

type duplicateSweeper interface {
	Sweep(ctx context.Context) (checkout.SweepSummary, error)
}

type deadLetterStore interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, id uuid.UUID) (*models.OutboxDLQ, error)
}

// Deps are the collaborators the HTTP surface is built from.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Ready    map[string]controllers.Pinger
	Gatherer prometheus.Gatherer

	Idempotency pkgredis.IdempotencyStore
	RateLimits  rateLimitStore
	ReplayGuard replayGuard

	Orders        orders.Service
	Checkout      checkout.Service
	Payments      payments.Service
	Fulfillment   fulfillment.Service
	Cancellation  cancellation.Service
	Balance       balance.Service
	Payouts       payouts.Service
	Sweeper       duplicateSweeper
	DeadLetters   deadLetterStore
	Notifications notifications.Service
	SquareWebhook webhookcontrollers.SquareWebhookService
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.AccessLog(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.CheckoutWindow, cfg.RateLimit.CheckoutLimit)
	payoutPolicy := middleware.NewRateLimitPolicy("payout", cfg.RateLimit.PayoutWindow, cfg.RateLimit.PayoutLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.Ready))
	})

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/square", webhookcontrollers.SquareWebhook(d.SquareWebhook, cfg.Square, d.ReplayGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(d.Idempotency, logg))

		r.With(
			middleware.RequireRole(logg, enums.UserRoleBuyer),
			middleware.RateLimit(checkoutPolicy, d.RateLimits, logg),
		).Post("/checkout", controllers.Checkout(d.Checkout, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(d.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(d.Orders, logg))
			r.Post("/{orderId}/sync-payment", ordercontrollers.SyncPayment(d.Payments, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleSeller)).
				Post("/{orderId}/deliver", ordercontrollers.Deliver(d.Fulfillment, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleBuyer)).
				Post("/{orderId}/confirm", ordercontrollers.Confirm(d.Fulfillment, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleBuyer, enums.UserRoleAdmin)).
				Post("/{orderId}/cancel", ordercontrollers.Cancel(d.Cancellation, logg))
		})

		r.Route("/shops/{shopId}", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleSeller, enums.UserRoleAdmin))
			r.Get("/balance", payoutcontrollers.Balance(d.Balance, logg))
			r.Get("/orders", ordercontrollers.ListForShop(d.Orders, logg))
			r.Get("/payout-destinations", payoutcontrollers.Destinations(d.Payouts, logg))
			r.Get("/payouts", payoutcontrollers.List(d.Payouts, logg))
			r.With(middleware.RateLimit(payoutPolicy, d.RateLimits, logg)).
				Post("/payouts", payoutcontrollers.Create(d.Payouts, logg))
			r.Get("/payouts/{payoutId}", payoutcontrollers.Detail(d.Payouts, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(d.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(d.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(d.Notifications, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Post("/maintenance/dedup-sweep", controllers.DedupSweep(d.Sweeper, logg))
			r.Get("/outbox/dead-letters", controllers.DeadLetters(d.DeadLetters, logg))
			r.Post("/outbox/dead-letters/{deadLetterId}/requeue", controllers.RequeueDeadLetter(d.DeadLetters, logg))
		})
	})

	return r
}
