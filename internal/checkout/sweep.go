package checkout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/redis"
)

const defaultSweepBatch = 100

// SweepSummary reports one pass of the duplicate checkout sweep.
type SweepSummary struct {
	Keys    int `json:"keys"`
	Kept    int `json:"kept"`
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
}

// Sweeper removes duplicate unpaid orders that slipped past the live guard.
type Sweeper struct {
	orders  orders.Repository
	locker  redis.Locker
	lockTTL time.Duration
	batch   int
	logg    *logger.Logger
}

func NewSweeper(repo orders.Repository, locker redis.Locker, lockTTL time.Duration, logg *logger.Logger) (*Sweeper, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if locker == nil {
		return nil, fmt.Errorf("locker required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Sweeper{orders: repo, locker: locker, lockTTL: lockTTL, batch: defaultSweepBatch, logg: logg}, nil
}

// Sweep keeps the newest live order per fingerprint key and deletes older copies
// that hold no money. Keys held by an in-flight checkout are skipped.
func (s *Sweeper) Sweep(ctx context.Context) (SweepSummary, error) {
	var summary SweepSummary
	keys, err := s.orders.ListDuplicateFingerprintKeys(ctx, s.batch)
	if err != nil {
		return summary, fmt.Errorf("list duplicate keys: %w", err)
	}

	var errs error
	for _, key := range keys {
		summary.Keys++
		kept, deleted, err := s.sweepKey(ctx, key)
		summary.Kept += kept
		summary.Deleted += deleted
		if err != nil {
			summary.Skipped++
			errs = multierr.Append(errs, fmt.Errorf("key %s: %w", key, err))
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"keys":    summary.Keys,
		"kept":    summary.Kept,
		"deleted": summary.Deleted,
		"skipped": summary.Skipped,
	}), "duplicate checkout sweep complete")
	return summary, errs
}

func (s *Sweeper) sweepKey(ctx context.Context, key string) (int, int, error) {
	lockKey := s.locker.LockKey(lockScope, key)
	token, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return 0, 0, err
	}
	if token == "" {
		return 0, 0, fmt.Errorf("checkout in progress")
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "lock_key", lockKey), "release sweep lock failed")
		}
	}()

	rows, err := s.orders.ListByFingerprintKey(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	keep := keeper(rows)

	kept, deleted := 0, 0
	var errs error
	for i := range rows {
		order := &rows[i]
		if i == keep || !Deletable(order) {
			kept++
			continue
		}
		if err := s.orders.DeleteUnpaid(ctx, order.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", order.ID, err))
			kept++
			continue
		}
		deleted++
		s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "deleted duplicate order")
	}
	return kept, deleted, errs
}

// keeper picks the newest non-cancelled order; rows arrive newest first.
func keeper(rows []models.Order) int {
	for i := range rows {
		if rows[i].OrderStatus != enums.OrderStatusCancelled {
			return i
		}
	}
	return 0
}

// Deletable reports whether removing order can lose no money: the payment never
// completed, and no charge is still outstanding or being refunded.
func Deletable(order *models.Order) bool {
	if order.PaymentStatus == enums.PaymentStatusCompleted {
		return false
	}
	if order.RefundStatus != nil {
		return false
	}
	if order.PaymentStatus == enums.PaymentStatusPending && order.ChargeReference != nil {
		return false
	}
	// A pending order with a recorded error has a charge of unknown outcome.
	if order.PaymentStatus == enums.PaymentStatusPending && order.LastPaymentError != nil {
		return false
	}
	return true
}
