// Package fulfillment moves paid orders through delivery and buyer confirmation. Buyer
// confirmation releases the escrow that the payout processor later draws on.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

const maxPayloadKeys = 32

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type salesCounter interface {
	IncrementSales(ctx context.Context, shopID uuid.UUID, gross int64) error
}

type Service interface {
	Deliver(ctx context.Context, actor auth.Actor, orderID uuid.UUID, payload map[string]any) (*models.Order, error)
	Confirm(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
}

type Deps struct {
	Tx     txRunner
	Orders orders.Repository
	Sales  salesCounter
	Outbox outboxPublisher
	Logger *logger.Logger
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
	case deps.Sales == nil:
		return nil, fmt.Errorf("sales counter required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{deps: deps, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Deliver stores the seller's fulfillment payload on its shop group. The order is
// marked delivered when its last group is delivered; a resend replaces the payload
// and keeps the first delivery time.
func (s *service) Deliver(ctx context.Context, actor auth.Actor, orderID uuid.UUID, payload map[string]any) (*models.Order, error) {
	if actor.ShopID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only sellers can deliver orders")
	}
	if len(payload) == 0 {
		return nil, pkgerrors.FieldError("fulfillment", "fulfillment payload is required")
	}
	if len(payload) > maxPayloadKeys {
		return nil, pkgerrors.FieldError("fulfillment", fmt.Sprintf("fulfillment payload accepts at most %d keys", maxPayloadKeys))
	}
	shopID := *actor.ShopID
	ctx = s.deps.Logger.WithFields(ctx, map[string]any{"order_id": orderID.String(), "shop_id": shopID.String()})

	order, err := s.deps.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, orders.MapLookupError(err)
	}
	group, err := orders.CheckDeliverable(order, shopID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var allDelivered bool
	err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.deps.Orders.WithTx(tx)
		// Touching the order row first serializes concurrent deliveries of sibling groups.
		if err := repo.UpdateGuarded(ctx, order.ID, orders.Guard{
			PaymentStatus: []enums.PaymentStatus{enums.PaymentStatusCompleted},
			OrderStatus:   []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing},
			RefundOpen:    true,
		}, map[string]any{"order_status": enums.OrderStatusProcessing}); err != nil {
			return err
		}
		if err := repo.UpdateGroupDelivery(ctx, group.ID, now, payload); err != nil {
			return err
		}
		done, err := repo.MarkDeliveredIfComplete(ctx, order.ID, now)
		if err != nil {
			return err
		}
		allDelivered = done
		return s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderDelivered,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, ShopID: &shopID, Role: string(actor.Role)},
			Data: payloads.OrderDeliveredEvent{
				OrderID:      order.ID,
				BuyerID:      order.BuyerID,
				ShopID:       shopID,
				AllDelivered: done,
				DeliveredAt:  now,
			},
			OccurredAt: now,
		})
	})
	if errors.Is(err, db.ErrStaleWrite) {
		return nil, s.staleConflict(ctx, order, "order changed while delivering")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deliver order")
	}

	s.deps.Logger.Info(s.deps.Logger.WithField(ctx, "all_delivered", allDelivered), "shop group delivered")
	return s.reload(ctx, order.ID)
}

// Confirm records buyer receipt and releases every shop group for payout.
func (s *service) Confirm(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	ctx = s.deps.Logger.WithOrderID(ctx, orderID.String())
	order, err := s.deps.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, orders.MapLookupError(err)
	}
	if err := orders.CheckConfirmable(order, actor.UserID); err != nil {
		return nil, err
	}

	now := s.now()
	notConfirmed, delivered := false, true
	err = s.deps.Tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.deps.Orders.WithTx(tx)
		if err := repo.UpdateGuarded(ctx, order.ID, orders.Guard{
			PaymentStatus:  []enums.PaymentStatus{enums.PaymentStatusCompleted},
			OrderStatus:    []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing},
			BuyerConfirmed: &notConfirmed,
			Delivered:      &delivered,
			RefundOpen:     true,
		}, map[string]any{
			"buyer_confirmed":    true,
			"buyer_confirmed_at": now,
			"order_status":       enums.OrderStatusCompleted,
		}); err != nil {
			return err
		}
		if err := repo.ReleaseGroupsForPayout(ctx, order.ID); err != nil {
			return err
		}
		if err := repo.SyncPayoutRollup(ctx, order.ID); err != nil {
			return err
		}
		return s.deps.Outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderConfirmed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)},
			Data: payloads.OrderConfirmedEvent{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				Shops:       orders.ShopAmounts(order),
				GrossTotal:  order.GrossTotal,
				Currency:    order.Currency,
				ConfirmedAt: now,
			},
			OccurredAt: now,
		})
	})
	if errors.Is(err, db.ErrStaleWrite) {
		fresh, lookupErr := s.deps.Orders.FindByID(ctx, order.ID)
		if lookupErr != nil {
			return nil, orders.MapLookupError(lookupErr)
		}
		if err := orders.CheckConfirmable(fresh, actor.UserID); err != nil {
			return nil, err
		}
		return nil, orders.Conflict(fresh, "order changed while confirming")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm order")
	}

	for _, group := range order.ShopGroups {
		if err := s.deps.Sales.IncrementSales(ctx, group.ShopID, group.GrossAmount); err != nil {
			s.deps.Logger.Error(s.deps.Logger.WithShopID(ctx, group.ShopID.String()), "increment shop sales", err)
		}
	}
	s.deps.Logger.Info(ctx, "order confirmed, escrow released")
	return s.reload(ctx, order.ID)
}

func (s *service) staleConflict(ctx context.Context, order *models.Order, msg string) error {
	fresh, err := s.deps.Orders.FindByID(ctx, order.ID)
	if err != nil {
		return orders.MapLookupError(err)
	}
	return orders.Conflict(fresh, msg)
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.deps.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, orders.MapLookupError(err)
	}
	return order, nil
}
