package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/pagination"
)

// Service exposes the read side of the order ledger with access checks.
type Service interface {
	Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*OrderView, error)
	ListForBuyer(ctx context.Context, actor auth.Actor, params pagination.Params) (*OrderListView, error)
	ListForShop(ctx context.Context, actor auth.Actor, shopID uuid.UUID, params pagination.Params) (*OrderListView, error)
}

type service struct {
	repo Repository
}

// NewService builds the order read service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, MapLookupError(err)
	}
	if !CanView(actor, order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	view := NewOrderView(order, fulfillmentVisibility(actor, order))
	return &view, nil
}

func (s *service) ListForBuyer(ctx context.Context, actor auth.Actor, params pagination.Params) (*OrderListView, error) {
	if err := checkCursor(params); err != nil {
		return nil, err
	}
	list, err := s.repo.ListForBuyer(ctx, actor.UserID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return toListView(actor, list), nil
}

func (s *service) ListForShop(ctx context.Context, actor auth.Actor, shopID uuid.UUID, params pagination.Params) (*OrderListView, error) {
	if !actor.IsAdmin() && !actor.OwnsShop(shopID) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop access denied")
	}
	if err := checkCursor(params); err != nil {
		return nil, err
	}
	list, err := s.repo.ListForShop(ctx, shopID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shop orders")
	}
	return toListView(actor, list), nil
}

// CanView reports whether actor is the buyer, a selling shop, or an admin.
func CanView(actor auth.Actor, order *models.Order) bool {
	if actor.IsAdmin() || actor.UserID == order.BuyerID {
		return true
	}
	return actor.ShopID != nil && order.Group(*actor.ShopID) != nil
}

// MapLookupError converts repository lookups into API errors.
func MapLookupError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}

func checkCursor(params pagination.Params) error {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return nil
}

// ViewFor projects order as actor is allowed to see it.
func ViewFor(actor auth.Actor, order *models.Order) OrderView {
	return NewOrderView(order, fulfillmentVisibility(actor, order))
}

func fulfillmentVisibility(actor auth.Actor, order *models.Order) func(uuid.UUID) bool {
	return func(shopID uuid.UUID) bool {
		return actor.IsAdmin() || actor.UserID == order.BuyerID || actor.OwnsShop(shopID)
	}
}

func toListView(actor auth.Actor, list *OrderList) *OrderListView {
	out := &OrderListView{
		Orders:     make([]OrderView, 0, len(list.Orders)),
		NextCursor: list.NextCursor,
	}
	for i := range list.Orders {
		order := &list.Orders[i]
		out.Orders = append(out.Orders, NewOrderView(order, fulfillmentVisibility(actor, order)))
	}
	return out
}
