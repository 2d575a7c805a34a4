package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/internal/gateway"
	"github.com/angelmondragon/digimart-backend/internal/ledger"
	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/internal/refunds"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/metrics"
	"github.com/angelmondragon/digimart-backend/pkg/outbox"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

// unresolvedChargeTTL is how long a charge attempt of unknown outcome may stay
// unmatched at the gateway before the background sync fails the order.
const unresolvedChargeTTL = time.Hour

// Reconciliation sources, used as a metrics label and in ledger metadata.
const (
	SourceWebhook  = "webhook"
	SourceSync     = "sync"
	SourceCron     = "cron"
	SourceCheckout = "checkout"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// stockEffects are the post-commit inventory steps of a completed payment.
type stockEffects interface {
	ApplySale(ctx context.Context, order *models.Order) int
	ClearCart(ctx context.Context, order *models.Order)
}

type auditor interface {
	Audit(ctx context.Context, entry ledger.Entry)
}

type refunder interface {
	Refund(ctx context.Context, order *models.Order, reason string) (refunds.Outcome, error)
}

// Service keeps the order payment axis in step with the gateway charge.
type Service interface {
	HandleChargeUpdate(ctx context.Context, charge gateway.Charge) (*Result, error)
	SyncPayment(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*Result, error)
	SyncOrder(ctx context.Context, order *models.Order) (*Result, error)
	ApplyCharge(ctx context.Context, orderID uuid.UUID, charge gateway.Charge, source string) error
}

// Result is the order after reconciliation. Changed is true only when this call won
// the compare-and-set.
type Result struct {
	Order   *models.Order
	Changed bool
}

type Deps struct {
	Tx       txRunner
	Orders   orders.Repository
	Charges  gateway.Charges
	Stock    stockEffects
	Refunder refunder
	Outbox   outboxPublisher
	Audit    auditor
	Logger   *logger.Logger
	Metrics  *metrics.EngineMetrics
}

type service struct {
	deps Deps
	now  func() time.Time
}

func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Charges == nil:
		return nil, fmt.Errorf("charge gateway required")
	case deps.Stock == nil:
		return nil, fmt.Errorf("stock effects required")
	case deps.Refunder == nil:
		return nil, fmt.Errorf("refunder required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{deps: deps, now: func() time.Time { return time.Now().UTC() }}, nil
}

// HandleChargeUpdate is the push path: a gateway event names a charge and its status.
func (s *service) HandleChargeUpdate(ctx context.Context, charge gateway.Charge) (*Result, error) {
	if charge.Reference == "" {
		return nil, pkgerrors.FieldError("charge_reference", "charge reference required")
	}
	order, err := s.deps.Orders.FindByChargeReference(ctx, charge.Reference)
	if err != nil {
		return nil, orders.MapLookupError(err)
	}
	return s.apply(ctx, order, charge, SourceWebhook)
}

// SyncPayment is the pull path requested by a participant of the order.
func (s *service) SyncPayment(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*Result, error) {
	order, err := s.deps.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, orders.MapLookupError(err)
	}
	if !orders.CanView(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.sync(ctx, order, SourceSync)
}

// SyncOrder re-polls the gateway for an order already loaded by a background job.
func (s *service) SyncOrder(ctx context.Context, order *models.Order) (*Result, error) {
	return s.sync(ctx, order, SourceCron)
}

func (s *service) ApplyCharge(ctx context.Context, orderID uuid.UUID, charge gateway.Charge, source string) error {
	order, err := s.deps.Orders.FindByID(ctx, orderID)
	if err != nil {
		return orders.MapLookupError(err)
	}
	_, err = s.apply(ctx, order, charge, source)
	return err
}

func (s *service) sync(ctx context.Context, order *models.Order, source string) (*Result, error) {
	if order.ChargeReference == nil || *order.ChargeReference == "" {
		return s.locate(ctx, order, source)
	}
	charge, err := s.deps.Charges.GetCharge(ctx, *order.ChargeReference)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch charge status")
	}
	if CanResync(order, *charge) {
		return s.resync(ctx, order)
	}
	return s.apply(ctx, order, *charge, source)
}

// locate finds the charge of a pending order whose checkout never learned the charge
// reference, stores the reference and reconciles against it.
func (s *service) locate(ctx context.Context, order *models.Order, source string) (*Result, error) {
	if order.PaymentStatus != enums.PaymentStatusPending {
		return nil, orders.Conflict(order, "order has no gateway charge to sync")
	}
	ctx = s.deps.Logger.WithOrderID(ctx, order.ID.String())
	charge, err := s.deps.Charges.FindCharge(ctx, order.ID, order.CreatedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find charge by order reference")
	}
	if charge == nil {
		if source == SourceCron && s.now().Sub(order.CreatedAt) >= unresolvedChargeTTL {
			s.deps.Logger.Warn(ctx, "no gateway charge found for order, failing payment")
			return s.apply(ctx, order, gateway.Charge{Status: enums.ChargeStatusFailed}, source)
		}
		return &Result{Order: order}, nil
	}

	err = s.deps.Orders.UpdateGuarded(ctx, order.ID, orders.Guard{
		PaymentStatus: []enums.PaymentStatus{enums.PaymentStatusPending},
	}, map[string]any{"charge_reference": charge.Reference})
	if errors.Is(err, db.ErrStaleWrite) {
		return s.reload(ctx, order, false)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store charge reference")
	}
	ref := charge.Reference
	order.ChargeReference = &ref
	s.deps.Logger.Info(s.deps.Logger.WithField(ctx, "charge_reference", ref), "charge matched by order reference")
	return s.apply(ctx, order, *charge, source)
}

// resync is the only way back from failed to pending.
func (s *service) resync(ctx context.Context, order *models.Order) (*Result, error) {
	err := s.deps.Orders.UpdateGuarded(ctx, order.ID, orders.Guard{
		PaymentStatus: []enums.PaymentStatus{enums.PaymentStatusFailed},
		OrderStatus:   []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing},
	}, map[string]any{
		"payment_status":     enums.PaymentStatusPending,
		"last_payment_error": nil,
	})
	if errors.Is(err, db.ErrStaleWrite) {
		return s.reload(ctx, order, false)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resync payment")
	}
	s.deps.Logger.Info(s.deps.Logger.WithOrderID(ctx, order.ID.String()), "payment reset to pending by gateway resync")
	return s.reload(ctx, order, true)
}

func (s *service) apply(ctx context.Context, order *models.Order, charge gateway.Charge, source string) (*Result, error) {
	ctx = s.deps.Logger.WithOrderID(ctx, order.ID.String())

	if CapturedAfterCancel(order, charge) {
		s.deps.Logger.Warn(ctx, "charge captured on a cancelled order, refunding")
		if _, err := s.deps.Refunder.Refund(ctx, order, "order cancelled before payment settled"); err != nil {
			s.deps.Logger.Error(ctx, "record refund for late capture", err)
		}
		return &Result{Order: order}, nil
	}

	now := s.now()
	outcome := Transition(order, charge, now)
	if !outcome.Changed {
		return &Result{Order: order}, nil
	}
	updates := outcome.updates()
	if outcome.Cancel {
		updates["cancelled_at"] = now
		updates["cancel_reason"] = outcome.Reason
	}

	err := s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.deps.Orders.WithTx(tx).UpdateGuarded(ctx, order.ID, orders.Guard{
			PaymentStatus: []enums.PaymentStatus{enums.PaymentStatusPending},
			OrderStatus:   []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing},
		}, updates); err != nil {
			return err
		}
		return s.emit(ctx, tx, order, outcome, charge, now)
	})
	if errors.Is(err, db.ErrStaleWrite) {
		s.deps.Logger.Debug(ctx, "payment transition already applied")
		return s.reload(ctx, order, false)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "apply payment transition")
	}

	result, err := s.reload(ctx, order, true)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, result.Order, outcome, charge, source)
	return result, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, order *models.Order, outcome Outcome, charge gateway.Charge, now time.Time) error {
	eventType := enums.EventPaymentFailed
	if outcome.PaymentStatus == enums.PaymentStatusCompleted {
		eventType = enums.EventPaymentCompleted
	}
	if err := s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.PaymentStatusEvent{
			OrderID:         order.ID,
			BuyerID:         order.BuyerID,
			Shops:           orders.ShopAmounts(order),
			PaymentStatus:   outcome.PaymentStatus,
			OrderStatus:     outcome.OrderStatus,
			ChargeReference: charge.Reference,
			GrossTotal:      order.GrossTotal,
			Currency:        order.Currency,
			Reason:          outcome.Reason,
			OccurredAt:      now,
		},
		OccurredAt: now,
	}); err != nil {
		return err
	}
	if !outcome.Cancel {
		return nil
	}
	return s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCancelled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderCancelledEvent{
			OrderID:     order.ID,
			BuyerID:     order.BuyerID,
			Shops:       orders.ShopAmounts(order),
			Reason:      outcome.Reason,
			GrossTotal:  order.GrossTotal,
			Currency:    order.Currency,
			CancelledAt: now,
		},
		OccurredAt: now,
	})
}

// afterCommit runs the best-effort steps of a transition this call applied.
func (s *service) afterCommit(ctx context.Context, order *models.Order, outcome Outcome, charge gateway.Charge, source string) {
	s.deps.Metrics.IncPaymentTransition(source, string(outcome.PaymentStatus))

	ledgerType := enums.LedgerEventPaymentFailed
	if outcome.PaymentStatus == enums.PaymentStatusCompleted {
		ledgerType = enums.LedgerEventPaymentCompleted
		applied := s.deps.Stock.ApplySale(ctx, order)
		s.deps.Stock.ClearCart(ctx, order)
		s.deps.Logger.Info(s.deps.Logger.WithField(ctx, "stock_items", applied), "payment completed")
	} else {
		s.deps.Logger.Info(s.deps.Logger.WithField(ctx, "reason", outcome.Reason), "payment failed")
	}
	if s.deps.Audit != nil {
		entry := ledger.OrderEntry(order, ledgerType, order.GrossTotal, charge.Reference)
		entry.Metadata = map[string]any{"source": source, "charge_status": string(charge.Status)}
		s.deps.Audit.Audit(ctx, entry)
	}
}

func (s *service) reload(ctx context.Context, order *models.Order, changed bool) (*Result, error) {
	fresh, err := s.deps.Orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, orders.MapLookupError(err)
	}
	return &Result{Order: fresh, Changed: changed}, nil
}
