package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/digimart-backend/internal/payouts"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

type payoutReconciler interface {
	ReconcileProcessing(ctx context.Context) (payouts.ReconcileSummary, error)
}

// NewPayoutReconcileJob settles payouts stuck in processing after a lost
// transfer response.
func NewPayoutReconcileJob(logg *logger.Logger, payoutSvc payoutReconciler) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if payoutSvc == nil {
		return nil, fmt.Errorf("payout service required")
	}
	return &payoutReconcileJob{logg: logg, payouts: payoutSvc}, nil
}

type payoutReconcileJob struct {
	logg    *logger.Logger
	payouts payoutReconciler
}

func (j *payoutReconcileJob) Name() string { return "payout-reconcile" }

func (j *payoutReconcileJob) Run(ctx context.Context) error {
	summary, err := j.payouts.ReconcileProcessing(ctx)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"checked":   summary.Checked,
		"completed": summary.Completed,
		"failed":    summary.Failed,
		"waiting":   summary.Waiting,
	}), "payout reconcile complete")
	if err != nil {
		return fmt.Errorf("payout reconcile: %w", err)
	}
	return nil
}
