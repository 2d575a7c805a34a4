// Package payouts turns a shop's confirmed, unpaid earnings into gateway transfers.
// A payout row is written before the transfer so an unknown gateway outcome can be
// settled later by the reconciliation job.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/internal/balance"
	"github.com/angelmondragon/digimart-backend/internal/gateway"
	"github.com/angelmondragon/digimart-backend/internal/ledger"
	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/internal/shops"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/config"
	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/digimart-backend/pkg/db/types"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/metrics"
	"github.com/angelmondragon/digimart-backend/pkg/outbox"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/digimart-backend/pkg/pagination"
	"github.com/angelmondragon/digimart-backend/pkg/redis"
)

const lockScope = "payout"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type earnings interface {
	EligibleOrders(ctx context.Context, shopID uuid.UUID) ([]balance.Entry, error)
}

type destinations interface {
	ResolveDestination(ctx context.Context, shopID uuid.UUID, destinationID *uuid.UUID) (*models.PayoutDestination, error)
	ListDestinations(ctx context.Context, actor auth.Actor, shopID uuid.UUID) ([]shops.DestinationView, error)
}

type auditor interface {
	Audit(ctx context.Context, entry ledger.Entry)
}

type Request struct {
	Amount        int64
	DestinationID *uuid.UUID
}

type Service interface {
	RequestPayout(ctx context.Context, actor auth.Actor, shopID uuid.UUID, req Request) (*models.Payout, error)
	ListPayouts(ctx context.Context, actor auth.Actor, shopID uuid.UUID, params pagination.Params) (*PayoutList, error)
	GetPayout(ctx context.Context, actor auth.Actor, shopID, payoutID uuid.UUID) (*models.Payout, error)
	ListDestinations(ctx context.Context, actor auth.Actor, shopID uuid.UUID) ([]shops.DestinationView, error)
	ReconcileProcessing(ctx context.Context) (ReconcileSummary, error)
}

type Deps struct {
	Tx           txRunner
	Payouts      Repository
	Orders       orders.Repository
	Earnings     earnings
	Destinations destinations
	Transfers    gateway.Transfers
	Locker       redis.Locker
	Outbox       outboxPublisher
	Audit        auditor
	Logger       *logger.Logger
	Metrics      *metrics.EngineMetrics
}

type service struct {
	cfg      config.PayoutsConfig
	currency enums.Currency
	deps     Deps
	now      func() time.Time
}

func NewService(cfg config.PayoutsConfig, deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Payouts == nil:
		return nil, fmt.Errorf("payouts repository required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Earnings == nil:
		return nil, fmt.Errorf("earnings source required")
	case deps.Destinations == nil:
		return nil, fmt.Errorf("destinations required")
	case deps.Transfers == nil:
		return nil, fmt.Errorf("transfer gateway required")
	case deps.Locker == nil:
		return nil, fmt.Errorf("locker required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	currency, err := enums.ParseCurrency(cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("payout currency: %w", err)
	}
	return &service{cfg: cfg, currency: currency, deps: deps, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) RequestPayout(ctx context.Context, actor auth.Actor, shopID uuid.UUID, req Request) (*models.Payout, error) {
	if err := shops.Authorize(actor, shopID); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, pkgerrors.FieldError("amount", "amount must be positive")
	}
	if req.Amount < s.cfg.MinimumAmount {
		return nil, pkgerrors.FieldError("amount", fmt.Sprintf("amount must be at least %d", s.cfg.MinimumAmount))
	}
	ctx = s.deps.Logger.WithShopID(ctx, shopID.String())

	dest, err := s.deps.Destinations.ResolveDestination(ctx, shopID, req.DestinationID)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, shopID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Earnings held by a processing payout are not reflected on the shop groups
	// until it settles, so nothing new is planned against them meanwhile.
	if err := s.checkNoneInFlight(ctx, shopID); err != nil {
		return nil, err
	}

	entries, err := s.deps.Earnings.EligibleOrders(ctx, shopID)
	if err != nil {
		return nil, err
	}
	available := balance.Available(entries)
	if req.Amount > available {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficient, "requested amount exceeds available balance").
			WithDetails(map[string]int64{"available": available, "requested": req.Amount})
	}

	allocations := Allocate(entries, req.Amount)
	payout := &models.Payout{
		ID:            uuid.New(),
		ShopID:        shopID,
		DestinationID: dest.ID,
		Amount:        req.Amount,
		Currency:      s.currency,
		Status:        enums.PayoutRecordProcessing,
		OrderIDs:      orderIDs(allocations),
		Allocations:   allocations,
	}
	if err := s.deps.Payouts.Create(ctx, payout); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payout")
	}
	ctx = s.deps.Logger.WithPayoutID(ctx, payout.ID.String())

	transfer, err := s.deps.Transfers.CreateTransfer(ctx, gateway.TransferRequest{
		PayoutID:    payout.ID,
		Destination: dest.AccountReference,
		Amount:      payout.Amount,
		Currency:    payout.Currency,
	})
	switch {
	case err != nil && gateway.UnknownOutcome(err):
		s.deps.Logger.Error(ctx, "payout transfer outcome unknown, left for reconciliation", err)
		s.deps.Metrics.ObservePayout("unknown", string(payout.Currency), payout.Amount)
		return payout, nil
	case err != nil:
		if failErr := s.fail(ctx, payout, err.Error()); failErr != nil {
			s.deps.Logger.Error(ctx, "record failed payout", failErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payout transfer failed").
			WithDetails(map[string]string{"payout_id": payout.ID.String()})
	}

	if err := s.settle(ctx, payout, transfer.Reference); err != nil {
		return nil, err
	}
	return s.reload(ctx, payout)
}

func (s *service) ListPayouts(ctx context.Context, actor auth.Actor, shopID uuid.UUID, params pagination.Params) (*PayoutList, error) {
	if err := shops.Authorize(actor, shopID); err != nil {
		return nil, err
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	list, err := s.deps.Payouts.ListForShop(ctx, shopID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payouts")
	}
	return list, nil
}

func (s *service) GetPayout(ctx context.Context, actor auth.Actor, shopID, payoutID uuid.UUID) (*models.Payout, error) {
	if err := shops.Authorize(actor, shopID); err != nil {
		return nil, err
	}
	payout, err := s.deps.Payouts.FindForShop(ctx, shopID, payoutID)
	if errors.Is(err, ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payout")
	}
	return payout, nil
}

func (s *service) ListDestinations(ctx context.Context, actor auth.Actor, shopID uuid.UUID) ([]shops.DestinationView, error) {
	return s.deps.Destinations.ListDestinations(ctx, actor, shopID)
}

// settle applies a confirmed transfer: every allocated shop group moves by its share,
// then the payout completes. A compare-and-set miss aborts the whole batch and the
// transfer reference is kept on the still-processing payout for manual follow-up.
func (s *service) settle(ctx context.Context, payout *models.Payout, transferRef string) error {
	now := s.now()
	err := s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.deps.Orders.WithTx(tx)
		for _, alloc := range payout.Allocations {
			status, paidOut, err := planned(alloc)
			if err != nil {
				return fmt.Errorf("plan allocation for group %s: %w", alloc.ShopGroupID, err)
			}
			if err := orderRepo.UpdatePayoutIfStatusIn(ctx, alloc.ShopGroupID,
				[]enums.PayoutStatus{enums.PayoutStatusReady, enums.PayoutStatusPartial},
				alloc.PrevPaidOut, status, paidOut); err != nil {
				return err
			}
		}
		for _, orderID := range payout.OrderIDs {
			if err := orderRepo.SyncPayoutRollup(ctx, orderID); err != nil {
				return err
			}
		}
		if err := s.deps.Payouts.WithTx(tx).UpdateIfStatus(ctx, payout.ID, enums.PayoutRecordProcessing, map[string]any{
			"status":             enums.PayoutRecordCompleted,
			"transfer_reference": transferRef,
			"failure_reason":     nil,
			"completed_at":       now,
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, payout, enums.EventPayoutCompleted, enums.PayoutRecordCompleted, transferRef, "", now)
	})
	if err != nil {
		reason := "allocation changed before settlement; manual reconciliation required"
		if !errors.Is(err, db.ErrStaleWrite) && !errors.Is(err, orders.ErrOverdraw) {
			reason = "settlement failed: " + err.Error()
		}
		if holdErr := s.deps.Payouts.UpdateIfStatus(ctx, payout.ID, enums.PayoutRecordProcessing, map[string]any{
			"transfer_reference": transferRef,
			"failure_reason":     reason,
		}); holdErr != nil {
			s.deps.Logger.Error(ctx, "record transfer on held payout", holdErr)
		}
		s.deps.Logger.Error(s.deps.Logger.WithField(ctx, "transfer_reference", transferRef), "payout settlement aborted", err)
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "payout allocations changed; transfer held for reconciliation").
			WithDetails(map[string]string{"payout_id": payout.ID.String(), "transfer_reference": transferRef})
	}

	payout.Status = enums.PayoutRecordCompleted
	payout.TransferReference = &transferRef
	payout.CompletedAt = &now
	s.deps.Metrics.ObservePayout(string(enums.PayoutRecordCompleted), string(payout.Currency), payout.Amount)
	s.audit(ctx, payout, enums.LedgerEventPayoutCompleted, transferRef)
	s.deps.Logger.Info(s.deps.Logger.WithField(ctx, "amount", payout.Amount), "payout completed")
	return nil
}

// fail marks a processing payout failed. Orders are untouched.
func (s *service) fail(ctx context.Context, payout *models.Payout, reason string) error {
	now := s.now()
	err := s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.deps.Payouts.WithTx(tx).UpdateIfStatus(ctx, payout.ID, enums.PayoutRecordProcessing, map[string]any{
			"status":         enums.PayoutRecordFailed,
			"failure_reason": reason,
			"failed_at":      now,
		}); err != nil {
			return err
		}
		return s.emit(ctx, tx, payout, enums.EventPayoutFailed, enums.PayoutRecordFailed, "", reason, now)
	})
	if err != nil {
		return err
	}
	payout.Status = enums.PayoutRecordFailed
	payout.FailureReason = &reason
	payout.FailedAt = &now
	s.deps.Metrics.ObservePayout(string(enums.PayoutRecordFailed), string(payout.Currency), payout.Amount)
	s.audit(ctx, payout, enums.LedgerEventPayoutFailed, "")
	s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "reason", reason), "payout failed")
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, payout *models.Payout, eventType enums.OutboxEventType, status enums.PayoutRecordStatus, transferRef, reason string, now time.Time) error {
	shopID := payout.ShopID
	return s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayout,
		AggregateID:   payout.ID,
		Actor:         &outbox.ActorRef{ShopID: &shopID},
		Data: payloads.PayoutEvent{
			PayoutID:          payout.ID,
			ShopID:            payout.ShopID,
			Amount:            payout.Amount,
			Currency:          payout.Currency,
			Status:            status,
			OrderIDs:          []uuid.UUID(payout.OrderIDs),
			TransferReference: transferRef,
			FailureReason:     reason,
			OccurredAt:        now,
		},
		OccurredAt: now,
	})
}

func (s *service) audit(ctx context.Context, payout *models.Payout, eventType enums.LedgerEventType, reference string) {
	if s.deps.Audit == nil {
		return
	}
	payoutID, shopID := payout.ID, payout.ShopID
	s.deps.Audit.Audit(ctx, ledger.Entry{
		PayoutID:  &payoutID,
		ShopID:    &shopID,
		Type:      eventType,
		Amount:    payout.Amount,
		Reference: reference,
		Metadata:  map[string]any{"order_ids": payout.OrderIDs.Strings()},
	})
}

func (s *service) lock(ctx context.Context, shopID uuid.UUID) (func(), error) {
	key := s.deps.Locker.LockKey(lockScope, shopID.String())
	token, err := s.deps.Locker.AcquireLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire payout lock")
	}
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a payout for this shop is already in progress")
	}
	return func() {
		if err := s.deps.Locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "lock_key", key), "release payout lock failed")
		}
	}, nil
}

func (s *service) checkNoneInFlight(ctx context.Context, shopID uuid.UUID) error {
	inFlight, err := s.deps.Payouts.InFlightForShop(ctx, shopID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check processing payouts")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "a previous payout for this shop is still processing").
		WithDetails(map[string]string{"payout_id": inFlight.ID.String()})
}

func (s *service) reload(ctx context.Context, payout *models.Payout) (*models.Payout, error) {
	fresh, err := s.deps.Payouts.FindForShop(ctx, payout.ShopID, payout.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload payout")
	}
	return fresh, nil
}

func orderIDs(allocations []models.PayoutAllocation) dbtypes.UUIDArray {
	seen := make(map[uuid.UUID]struct{}, len(allocations))
	out := make(dbtypes.UUIDArray, 0, len(allocations))
	for _, alloc := range allocations {
		if _, ok := seen[alloc.OrderID]; ok {
			continue
		}
		seen[alloc.OrderID] = struct{}{}
		out = append(out, alloc.OrderID)
	}
	return out
}
