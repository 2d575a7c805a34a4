// Package engine assembles the reconciliation services shared by the API server and
// the cron worker.
package engine

import (
	"context"
	"fmt"

	"github.com/angelmondragon/digimart-backend/internal/balance"
	"github.com/angelmondragon/digimart-backend/internal/cancellation"
	"github.com/angelmondragon/digimart-backend/internal/checkout"
	"github.com/angelmondragon/digimart-backend/internal/fulfillment"
	"github.com/angelmondragon/digimart-backend/internal/gateway"
	"github.com/angelmondragon/digimart-backend/internal/inventory"
	"github.com/angelmondragon/digimart-backend/internal/ledger"
	"github.com/angelmondragon/digimart-backend/internal/notifications"
	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/internal/payments"
	"github.com/angelmondragon/digimart-backend/internal/payouts"
	"github.com/angelmondragon/digimart-backend/internal/refunds"
	"github.com/angelmondragon/digimart-backend/internal/shops"
	"github.com/angelmondragon/digimart-backend/pkg/config"
	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/metrics"
	"github.com/angelmondragon/digimart-backend/pkg/outbox"
	"github.com/angelmondragon/digimart-backend/pkg/redis"
	"github.com/angelmondragon/digimart-backend/pkg/square"
	"github.com/angelmondragon/digimart-backend/pkg/stripe"
)

// Params are the process-level clients the engine is built on.
type Params struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Redis   *redis.Client
	Metrics *metrics.EngineMetrics
}

// Engine exposes every service a binary may need.
type Engine struct {
	Orders        orders.Repository
	OrderViews    orders.Service
	Checkout      checkout.Service
	Sweeper       *checkout.Sweeper
	Payments      payments.Service
	Refunds       *refunds.Issuer
	Fulfillment   fulfillment.Service
	Cancellation  cancellation.Service
	Balance       balance.Service
	Payouts       payouts.Service
	Notifications notifications.Service
	NotifyRepo    notifications.Repository
	OutboxRepo    *outbox.Repository
}

// New builds the engine. Gateway clients are created here so both binaries agree on
// which processor handles which leg.
func New(ctx context.Context, p Params) (*Engine, error) {
	switch {
	case p.Config == nil:
		return nil, fmt.Errorf("config required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case p.DB == nil:
		return nil, fmt.Errorf("db client required")
	case p.Redis == nil:
		return nil, fmt.Errorf("redis client required")
	}
	cfg, logg, conn := p.Config, p.Logger, p.DB.DB()

	squareClient, err := square.NewClient(ctx, cfg.Square, logg)
	if err != nil {
		return nil, fmt.Errorf("square client: %w", err)
	}
	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return nil, fmt.Errorf("stripe client: %w", err)
	}
	squareGateway, err := gateway.NewSquareGateway(squareClient)
	if err != nil {
		return nil, err
	}
	stripeGateway, err := gateway.NewStripeGateway(stripeClient)
	if err != nil {
		return nil, err
	}

	outboxRepo := outbox.NewRepository(conn)
	emitter := outbox.NewService(outboxRepo, logg)
	orderRepo := orders.NewRepository(conn)
	shopRepo := shops.NewRepository(conn)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	auditor := ledger.NewAuditor(ledgerSvc, logg)

	stockRepo := inventory.NewRepository(conn)
	stock, err := inventory.NewService(stockRepo, logg)
	if err != nil {
		return nil, err
	}

	issuer, err := refunds.NewIssuer(p.DB, orderRepo, squareGateway, emitter, auditor, logg, p.Metrics)
	if err != nil {
		return nil, err
	}

	paymentSvc, err := payments.NewService(payments.Deps{
		Tx:       p.DB,
		Orders:   orderRepo,
		Charges:  squareGateway,
		Stock:    stock,
		Refunder: issuer,
		Outbox:   emitter,
		Audit:    auditor,
		Logger:   logg,
		Metrics:  p.Metrics,
	})
	if err != nil {
		return nil, err
	}

	checkoutSvc, err := checkout.NewService(cfg.Checkout, checkout.Deps{
		Tx:           p.DB,
		Orders:       orderRepo,
		Catalog:      stockRepo,
		Destinations: shopRepo,
		Locker:       p.Redis,
		Charges:      squareGateway,
		Payments:     paymentSvc,
		Outbox:       emitter,
		Logger:       logg,
		Metrics:      p.Metrics,
	})
	if err != nil {
		return nil, err
	}

	sweeper, err := checkout.NewSweeper(orderRepo, p.Redis, cfg.Checkout.LockTTL, logg)
	if err != nil {
		return nil, err
	}

	fulfillmentSvc, err := fulfillment.NewService(fulfillment.Deps{
		Tx:     p.DB,
		Orders: orderRepo,
		Sales:  shopRepo,
		Outbox: emitter,
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}

	cancelSvc, err := cancellation.NewService(cancellation.Deps{
		Tx:       p.DB,
		Orders:   orderRepo,
		Refunder: issuer,
		Stock:    stock,
		Outbox:   emitter,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	balanceSvc, err := balance.NewService(balance.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	shopSvc, err := shops.NewService(shopRepo)
	if err != nil {
		return nil, err
	}

	payoutSvc, err := payouts.NewService(cfg.Payouts, payouts.Deps{
		Tx:           p.DB,
		Payouts:      payouts.NewRepository(conn),
		Orders:       orderRepo,
		Earnings:     balanceSvc,
		Destinations: shopSvc,
		Transfers:    stripeGateway,
		Locker:       p.Redis,
		Outbox:       emitter,
		Audit:        auditor,
		Logger:       logg,
		Metrics:      p.Metrics,
	})
	if err != nil {
		return nil, err
	}

	viewSvc, err := orders.NewService(orderRepo)
	if err != nil {
		return nil, err
	}
	notifyRepo := notifications.NewRepository(conn)
	notifySvc, err := notifications.NewService(notifyRepo)
	if err != nil {
		return nil, err
	}

	return &Engine{
		Orders:        orderRepo,
		OrderViews:    viewSvc,
		Checkout:      checkoutSvc,
		Sweeper:       sweeper,
		Payments:      paymentSvc,
		Refunds:       issuer,
		Fulfillment:   fulfillmentSvc,
		Cancellation:  cancelSvc,
		Balance:       balanceSvc,
		Payouts:       payoutSvc,
		Notifications: notifySvc,
		NotifyRepo:    notifyRepo,
		OutboxRepo:    outboxRepo,
	}, nil
}
