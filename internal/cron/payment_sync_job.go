package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/digimart-backend/internal/payments"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

const (
	defaultPaymentSyncAfter = 15 * time.Minute
	defaultPaymentSyncBatch = 100
)

// PaymentSyncJobParams configure the pending payment poller.
type PaymentSyncJobParams struct {
	Logger *logger.Logger
	Orders pendingPaymentLister
	Sync   orderSyncer
	After  time.Duration
	Batch  int
}

type pendingPaymentLister interface {
	ListPendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
}

type orderSyncer interface {
	SyncOrder(ctx context.Context, order *models.Order) (*payments.Result, error)
}

// NewPaymentSyncJob builds the job that polls the gateway for charges whose
// webhook never arrived.
func NewPaymentSyncJob(params PaymentSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Sync == nil {
		return nil, fmt.Errorf("payment syncer required")
	}
	after := params.After
	if after <= 0 {
		after = defaultPaymentSyncAfter
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultPaymentSyncBatch
	}
	return &paymentSyncJob{
		logg:   params.Logger,
		orders: params.Orders,
		sync:   params.Sync,
		after:  after,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type paymentSyncJob struct {
	logg   *logger.Logger
	orders pendingPaymentLister
	sync   orderSyncer
	after  time.Duration
	batch  int
	now    func() time.Time
}

func (j *paymentSyncJob) Name() string { return "payment-sync" }

func (j *paymentSyncJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	pending, err := j.orders.ListPendingPayments(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list pending payments: %w", err)
	}

	var (
		errs    error
		changed int
	)
	for i := range pending {
		order := &pending[i]
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		result, err := j.sync.SyncOrder(orderCtx, order)
		if err != nil {
			j.logg.Error(orderCtx, "payment sync failed", err)
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if result != nil && result.Changed {
			changed++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"checked": len(pending),
		"changed": changed,
	}), "payment sync complete")
	return errs
}
