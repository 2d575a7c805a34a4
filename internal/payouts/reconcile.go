package payouts

import (
	"context"

	"go.uber.org/multierr"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
)

// ReconcileSummary counts what a reconciliation pass did.
type ReconcileSummary struct {
	Checked   int
	Completed int
	Failed    int
	Waiting   int
}

// ReconcileProcessing settles payouts whose transfer outcome was never recorded. A
// transfer found by transfer group completes the payout; none found after FailAfter
// fails it. Per-payout errors are aggregated and do not stop the pass.
func (s *service) ReconcileProcessing(ctx context.Context) (ReconcileSummary, error) {
	var summary ReconcileSummary
	now := s.now()
	batch := s.cfg.ReconcileBatch
	if batch <= 0 {
		batch = 50
	}
	rows, err := s.deps.Payouts.ListProcessing(ctx, now.Add(-s.cfg.ReconcileAfter), batch)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list processing payouts")
	}

	var errs error
	for i := range rows {
		payout := &rows[i]
		summary.Checked++
		outcome, err := s.reconcileOne(ctx, payout)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		switch outcome {
		case "completed":
			summary.Completed++
		case "failed":
			summary.Failed++
		default:
			summary.Waiting++
		}
	}
	return summary, errs
}

func (s *service) reconcileOne(ctx context.Context, payout *models.Payout) (string, error) {
	ctx = s.deps.Logger.WithPayoutID(ctx, payout.ID.String())

	if payout.TransferReference != nil && *payout.TransferReference != "" {
		if err := s.settle(ctx, payout, *payout.TransferReference); err != nil {
			return "", err
		}
		return "completed", nil
	}

	transfers, err := s.deps.Transfers.FindTransfers(ctx, payout.ID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up payout transfers")
	}
	for _, transfer := range transfers {
		if transfer.Reversed {
			continue
		}
		if err := s.settle(ctx, payout, transfer.Reference); err != nil {
			return "", err
		}
		return "completed", nil
	}

	if s.now().Sub(payout.CreatedAt) < s.cfg.FailAfter {
		return "waiting", nil
	}
	if err := s.fail(ctx, payout, "no transfer found at gateway"); err != nil {
		return "", err
	}
	return "failed", nil
}
