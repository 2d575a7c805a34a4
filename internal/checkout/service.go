package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/internal/gateway"
	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/pkg/config"
	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/metrics"
	"github.com/angelmondragon/digimart-backend/pkg/outbox"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/digimart-backend/pkg/redis"
)

const lockScope = "checkout"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogReader interface {
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindCartItems(ctx context.Context, buyerID uuid.UUID, ids []uuid.UUID) ([]models.CartItem, error)
}

type destinationChecker interface {
	ShopsWithoutPayableDestination(ctx context.Context, shopIDs []uuid.UUID) ([]uuid.UUID, error)
}

// chargeApplier runs a charge snapshot through payment reconciliation.
type chargeApplier interface {
	ApplyCharge(ctx context.Context, orderID uuid.UUID, charge gateway.Charge, source string) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service creates orders from carts or direct purchases without double-charging
// repeated submissions.
type Service interface {
	Checkout(ctx context.Context, input Input) (*Result, error)
}

// DirectItem buys a product without going through the cart.
type DirectItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// Input is a checkout submission. Either CartItemIDs or Items must be set.
type Input struct {
	BuyerID       uuid.UUID
	CartItemIDs   []uuid.UUID
	Items         []DirectItem
	PaymentMethod enums.PaymentMethod
	SourceToken   string
}

// Result is the created order, or the live order a repeated submission matched.
type Result struct {
	Order       *models.Order
	IsDuplicate bool
}

// Deps wires the collaborators of the checkout service.
type Deps struct {
	Tx           txRunner
	Orders       orders.Repository
	Catalog      catalogReader
	Destinations destinationChecker
	Locker       redis.Locker
	Charges      gateway.Charges
	Payments     chargeApplier
	Outbox       outboxPublisher
	Logger       *logger.Logger
	Metrics      *metrics.EngineMetrics
}

type service struct {
	cfg      config.CheckoutConfig
	currency enums.Currency
	deps     Deps
	now      func() time.Time
}

// NewService builds the checkout service.
func NewService(cfg config.CheckoutConfig, deps Deps) (Service, error) {
	switch {
	case deps.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Catalog == nil:
		return nil, fmt.Errorf("catalog reader required")
	case deps.Destinations == nil:
		return nil, fmt.Errorf("destination checker required")
	case deps.Locker == nil:
		return nil, fmt.Errorf("locker required")
	case deps.Charges == nil:
		return nil, fmt.Errorf("charge gateway required")
	case deps.Payments == nil:
		return nil, fmt.Errorf("payment reconciler required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if cfg.DedupWindow <= 0 {
		return nil, fmt.Errorf("dedup window must be positive")
	}
	currency, err := enums.ParseCurrency(cfg.DefaultCurrency)
	if err != nil {
		return nil, err
	}
	return &service{
		cfg:      cfg,
		currency: currency,
		deps:     deps,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	ctx = s.deps.Logger.WithUserID(ctx, input.BuyerID.String())

	fingerprint := Fingerprint(input.CartItemIDs)
	var key string
	if len(fingerprint) > 0 {
		key = FingerprintKey(input.BuyerID, fingerprint)
		release, err := s.lock(ctx, key)
		if err != nil {
			return nil, err
		}
		defer release()

		existing, err := s.findDuplicate(ctx, input.BuyerID, fingerprint, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.deps.Metrics.IncCheckout("duplicate")
			s.deps.Logger.Info(s.deps.Logger.WithOrderID(ctx, existing.ID.String()), "checkout matched live order")
			return &Result{Order: existing, IsDuplicate: true}, nil
		}
	}

	lines, err := s.resolveLines(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, pkgerrors.FieldError("cart_item_ids", "cart is empty")
	}
	shopIDs, _ := GroupByShop(lines)
	missing, err := s.deps.Destinations.ShopsWithoutPayableDestination(ctx, shopIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check payout destinations")
	}
	if len(missing) > 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "shop %s has no enabled, verified payout destination", missing[0]).
			WithDetails(map[string]any{"shop_ids": missing})
	}

	order := buildOrder(orderDraft{
		BuyerID:     input.BuyerID,
		Currency:    s.currency,
		Method:      input.PaymentMethod,
		Fingerprint: fingerprint,
		Key:         key,
		FeeBps:      s.cfg.PlatformFeeBps,
		Now:         s.now(),
	}, lines)
	ctx = s.deps.Logger.WithOrderID(ctx, order.ID.String())

	if err := s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.deps.Orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: string(enums.UserRoleBuyer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				BuyerID:       order.BuyerID,
				Shops:         orders.ShopAmounts(order),
				GrossTotal:    order.GrossTotal,
				Currency:      order.Currency,
				PaymentMethod: order.PaymentMethod,
				FromCart:      order.FromCart(),
			},
		})
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist order")
	}

	charge, err := s.deps.Charges.CreateCharge(ctx, gateway.ChargeRequest{
		OrderID:     order.ID,
		Amount:      order.GrossTotal,
		Currency:    order.Currency,
		Method:      order.PaymentMethod,
		SourceToken: input.SourceToken,
	})
	if err != nil {
		// The processor may have taken the charge; payment sync resolves it by order reference.
		if gateway.UnknownOutcome(err) {
			s.deps.Metrics.IncCheckout("charge_unknown")
			s.markChargeUnknown(ctx, order, err)
		} else {
			s.deps.Metrics.IncCheckout("charge_failed")
			s.markChargeFailed(ctx, order, err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create charge").
			WithDetails(map[string]any{"order_id": order.ID})
	}

	if err := s.deps.Orders.UpdateGuarded(ctx, order.ID, orders.Guard{
		PaymentStatus: []enums.PaymentStatus{enums.PaymentStatusPending},
	}, map[string]any{"charge_reference": charge.Reference}); err != nil {
		s.deps.Logger.Error(ctx, "store charge reference", err)
	} else {
		ref := charge.Reference
		order.ChargeReference = &ref
	}

	if charge.Status != enums.ChargeStatusPending {
		if err := s.deps.Payments.ApplyCharge(ctx, order.ID, *charge, "checkout"); err != nil {
			s.deps.Logger.Error(ctx, "apply immediate charge outcome", err)
		}
		if fresh, err := s.deps.Orders.FindByID(ctx, order.ID); err == nil {
			order = fresh
		}
	}

	s.deps.Metrics.IncCheckout("created")
	s.deps.Logger.Info(s.deps.Logger.WithFields(ctx, map[string]any{
		"gross_total": order.GrossTotal,
		"shop_count":  len(order.ShopGroups),
	}), "checkout created order")
	return &Result{Order: order, IsDuplicate: false}, nil
}

func (s *service) lock(ctx context.Context, key string) (func(), error) {
	lockKey := s.deps.Locker.LockKey(lockScope, key)
	token, err := s.deps.Locker.AcquireLock(ctx, lockKey, s.cfg.LockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire checkout lock")
	}
	if token == "" {
		s.deps.Metrics.IncCheckout("in_flight")
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "an identical checkout is already in progress")
	}
	return func() {
		if err := s.deps.Locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.deps.Logger.Warn(s.deps.Logger.WithField(ctx, "lock_key", lockKey), "release checkout lock failed")
		}
	}, nil
}

// findDuplicate returns the newest live order holding exactly the same cart lines.
func (s *service) findDuplicate(ctx context.Context, buyerID uuid.UUID, fingerprint []string, key string) (*models.Order, error) {
	candidates, err := s.deps.Orders.FindLiveByFingerprint(ctx, buyerID, s.now().Add(-s.cfg.DedupWindow))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "search live orders")
	}
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.FingerprintKey == nil || *candidate.FingerprintKey != key {
			continue
		}
		if SameSet(candidate.CartItemFingerprint, fingerprint) {
			return candidate, nil
		}
	}
	return nil, nil
}

func (s *service) markChargeFailed(ctx context.Context, order *models.Order, cause error) {
	reason := cause.Error()
	now := s.now()
	err := s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.deps.Orders.WithTx(tx).UpdatePaymentIfPending(ctx, order.ID, map[string]any{
			"payment_status":     enums.PaymentStatusFailed,
			"last_payment_error": reason,
		}); err != nil {
			return err
		}
		return s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.PaymentStatusEvent{
				OrderID:       order.ID,
				BuyerID:       order.BuyerID,
				Shops:         orders.ShopAmounts(order),
				PaymentStatus: enums.PaymentStatusFailed,
				OrderStatus:   order.OrderStatus,
				GrossTotal:    order.GrossTotal,
				Currency:      order.Currency,
				Reason:        reason,
				OccurredAt:    now,
			},
		})
	})
	if errors.Is(err, db.ErrStaleWrite) {
		return
	}
	if err != nil {
		s.deps.Logger.Error(ctx, "record charge failure", err)
		return
	}
	order.PaymentStatus = enums.PaymentStatusFailed
	order.LastPaymentError = &reason
}

// markChargeUnknown keeps the order pending and records why its charge is unresolved.
func (s *service) markChargeUnknown(ctx context.Context, order *models.Order, cause error) {
	reason := cause.Error()
	err := s.deps.Orders.UpdatePaymentIfPending(ctx, order.ID, map[string]any{"last_payment_error": reason})
	if err != nil {
		if !errors.Is(err, db.ErrStaleWrite) {
			s.deps.Logger.Error(ctx, "record unresolved charge", err)
		}
		return
	}
	order.LastPaymentError = &reason
	s.deps.Logger.Warn(ctx, "charge outcome unknown, left for payment sync")
}

func validateInput(input Input) error {
	if input.BuyerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity required")
	}
	if len(input.CartItemIDs) == 0 && len(input.Items) == 0 {
		return pkgerrors.FieldError("cart_item_ids", "cart is empty")
	}
	if len(input.CartItemIDs) > 0 && len(input.Items) > 0 {
		return pkgerrors.FieldError("items", "send either cart_item_ids or items, not both")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.FieldError("payment_method", "unsupported payment method")
	}
	for _, id := range input.CartItemIDs {
		if id == uuid.Nil {
			return pkgerrors.FieldError("cart_item_ids", "cart item id is required")
		}
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.FieldError("items", "product_id is required")
		}
		if item.Quantity <= 0 {
			return pkgerrors.FieldError("items", "quantity must be positive")
		}
	}
	return nil
}
