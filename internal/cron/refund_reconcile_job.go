package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/digimart-backend/internal/refunds"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

const (
	defaultRefundReconcileAge = 10 * time.Minute
	defaultRefundBatch        = 100
)

type RefundReconcileJobParams struct {
	Logger  *logger.Logger
	Orders  pendingRefundLister
	Refunds refundReconciler
	MinAge  time.Duration
	Batch   int
}

type pendingRefundLister interface {
	ListPendingRefunds(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Order, error)
}

type refundReconciler interface {
	Reconcile(ctx context.Context, order *models.Order) (refunds.Outcome, bool, error)
}

// NewRefundReconcileJob builds the job that settles refunds left pending by an
// unknown gateway outcome.
func NewRefundReconcileJob(params RefundReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Refunds == nil {
		return nil, fmt.Errorf("refund issuer required")
	}
	age := params.MinAge
	if age <= 0 {
		age = defaultRefundReconcileAge
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultRefundBatch
	}
	return &refundReconcileJob{
		logg:    params.Logger,
		orders:  params.Orders,
		refunds: params.Refunds,
		age:     age,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type refundReconcileJob struct {
	logg    *logger.Logger
	orders  pendingRefundLister
	refunds refundReconciler
	age     time.Duration
	batch   int
	now     func() time.Time
}

func (j *refundReconcileJob) Name() string { return "refund-reconcile" }

func (j *refundReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.age)
	pending, err := j.orders.ListPendingRefunds(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list pending refunds: %w", err)
	}

	var (
		errs    error
		settled int
	)
	for i := range pending {
		order := &pending[i]
		orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
		outcome, changed, err := j.refunds.Reconcile(orderCtx, order)
		if err != nil {
			j.logg.Error(orderCtx, "refund reconcile failed", err)
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if changed {
			settled++
			j.logg.Info(j.logg.WithField(orderCtx, "refund_status", string(outcome.Status)), "refund outcome recorded")
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"checked": len(pending),
		"settled": settled,
	}), "refund reconcile complete")
	return errs
}
