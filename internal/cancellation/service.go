// Package cancellation reverses orders on behalf of buyers and admins, refunding the
// charge first when the order was already paid.
package cancellation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/internal/refunds"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

const (
	defaultReason  = "cancelled by request"
	maxReasonChars = 500
)

// cancellableStatuses are the order statuses a cancellation may move from.
var cancellableStatuses = []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type refunder interface {
	Refund(ctx context.Context, order *models.Order, reason string) (refunds.Outcome, error)
}

type stockRestorer interface {
	RestoreCancelled(ctx context.Context, order *models.Order) int
}

type Service interface {
	Cancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason string) (*models.Order, error)
}

type Deps struct {
	Tx       txRunner
	Orders   orders.Repository
	Refunder refunder
	Stock    stockRestorer
	Outbox   outboxPublisher
	Logger   *logger.Logger
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
	case deps.Refunder == nil:
		return nil, fmt.Errorf("refunder required")
	case deps.Stock == nil:
		return nil, fmt.Errorf("stock restorer required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{deps: deps, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Cancel refunds a paid order, records the refund outcome whatever it is, then
// cancels the order. A paid order is first marked refund-pending so no delivery or
// confirmation can land while the gateway call is in flight.
func (s *service) Cancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason string) (*models.Order, error) {
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonChars {
		return nil, pkgerrors.FieldError("reason", fmt.Sprintf("reason must be at most %d characters", maxReasonChars))
	}
	if reason == "" {
		reason = defaultReason
	}
	ctx = s.deps.Logger.WithOrderID(ctx, orderID.String())

	order, err := s.deps.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, orders.MapLookupError(err)
	}
	if !orders.CanView(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !actor.IsAdmin() && actor.UserID != order.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer or an admin can cancel an order")
	}
	if err := orders.CheckCancellable(order); err != nil {
		return nil, err
	}

	paid := order.PaymentStatus == enums.PaymentStatusCompleted
	if paid {
		if err := s.claimRefund(ctx, order); err != nil {
			return nil, err
		}
		outcome, err := s.deps.Refunder.Refund(ctx, order, reason)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record refund")
		}
		s.deps.Logger.Info(s.deps.Logger.WithField(ctx, "refund_status", outcome.Status), "refund attempted before cancellation")
	}

	now := s.now()
	cancelledBy := actor.UserID
	notConfirmed := false
	err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.deps.Orders.WithTx(tx).UpdateGuarded(ctx, order.ID, orders.Guard{
			PaymentStatus:  []enums.PaymentStatus{order.PaymentStatus},
			OrderStatus:    cancellableStatuses,
			BuyerConfirmed: &notConfirmed,
		}, map[string]any{
			"order_status":  enums.OrderStatusCancelled,
			"cancelled_at":  now,
			"cancelled_by":  cancelledBy,
			"cancel_reason": reason,
		}); err != nil {
			return err
		}
		return s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, ShopID: actor.ShopID, Role: string(actor.Role)},
			Data: payloads.OrderCancelledEvent{
				OrderID:        order.ID,
				BuyerID:        order.BuyerID,
				Shops:          orders.ShopAmounts(order),
				CancelledBy:    &cancelledBy,
				Reason:         reason,
				RefundStatus:   order.RefundStatus,
				RefundedAmount: order.RefundedAmount,
				GrossTotal:     order.GrossTotal,
				Currency:       order.Currency,
				CancelledAt:    now,
			},
			OccurredAt: now,
		})
	})
	if errors.Is(err, db.ErrStaleWrite) {
		fresh, lookupErr := s.deps.Orders.FindByID(ctx, order.ID)
		if lookupErr != nil {
			return nil, orders.MapLookupError(lookupErr)
		}
		if paid && orders.RefundActive(fresh) {
			s.deps.Logger.Error(ctx, "refund issued but order could not be cancelled", err)
		}
		if err := orders.CheckCancellable(fresh); err != nil {
			return nil, err
		}
		return nil, orders.Conflict(fresh, "order changed while cancelling, retry")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "cancel order")
	}

	if paid {
		restored := s.deps.Stock.RestoreCancelled(ctx, order)
		s.deps.Logger.Info(s.deps.Logger.WithField(ctx, "stock_items", restored), "stock restored after cancellation")
	}
	s.deps.Logger.Info(ctx, "order cancelled")

	fresh, err := s.deps.Orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, orders.MapLookupError(err)
	}
	return fresh, nil
}

// claimRefund moves a paid, unconfirmed order to refund_status=pending. A refund
// left pending by an earlier attempt is claimed again since the gateway dedupes on
// the order id. An already succeeded refund needs no claim.
func (s *service) claimRefund(ctx context.Context, order *models.Order) error {
	if order.RefundStatus != nil && *order.RefundStatus == enums.RefundStatusSucceeded {
		return nil
	}
	notConfirmed := false
	pending := enums.RefundStatusPending
	guard := orders.Guard{
		PaymentStatus:  []enums.PaymentStatus{enums.PaymentStatusCompleted},
		OrderStatus:    cancellableStatuses,
		BuyerConfirmed: &notConfirmed,
	}
	if order.RefundStatus == nil || *order.RefundStatus != enums.RefundStatusPending {
		guard.RefundOpen = true
	}
	err := s.deps.Orders.UpdateGuarded(ctx, order.ID, guard, map[string]any{"refund_status": pending})
	if errors.Is(err, db.ErrStaleWrite) {
		fresh, lookupErr := s.deps.Orders.FindByID(ctx, order.ID)
		if lookupErr != nil {
			return orders.MapLookupError(lookupErr)
		}
		if err := orders.CheckCancellable(fresh); err != nil {
			return err
		}
		return orders.Conflict(fresh, "order changed before the refund started, retry")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark refund pending")
	}
	order.RefundStatus = &pending
	return nil
}
