package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

// Service applies the stock side effects of payment and cancellation. Every step is
// best effort: a failing line item is logged and the remaining items still run.
type Service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// ApplySale decrements stock for each line item of a paid order and returns how many
// items were applied.
func (s *Service) ApplySale(ctx context.Context, order *models.Order) int {
	return s.eachItem(ctx, order, "decrement stock", s.repo.DecrementForSale)
}

// RestoreCancelled puts the stock of a cancelled paid order back.
func (s *Service) RestoreCancelled(ctx context.Context, order *models.Order) int {
	return s.eachItem(ctx, order, "restore stock", s.repo.RestoreForCancel)
}

// ClearCart deletes the cart lines an order was built from.
func (s *Service) ClearCart(ctx context.Context, order *models.Order) {
	if order == nil || !order.FromCart() {
		return
	}
	ids := make([]uuid.UUID, 0, len(order.CartItemFingerprint))
	for _, raw := range order.CartItemFingerprint {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "cart_item_id", raw), "skipping malformed cart item id")
			continue
		}
		ids = append(ids, id)
	}
	deleted, err := s.repo.DeleteCartItems(ctx, order.BuyerID, ids)
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "clear cart lines", err)
		return
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"deleted":  deleted,
	}), "cart lines cleared")
}

func (s *Service) eachItem(ctx context.Context, order *models.Order, step string, apply func(context.Context, uuid.UUID, int) error) int {
	if order == nil {
		return 0
	}
	applied := 0
	for _, item := range order.LineItems() {
		if err := apply(ctx, item.ProductID, item.Quantity); err != nil {
			itemCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id":   order.ID.String(),
				"product_id": item.ProductID.String(),
				"quantity":   item.Quantity,
			})
			s.logg.Error(itemCtx, step, err)
			continue
		}
		applied++
	}
	return applied
}
