package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/pagination"
)

type stubRepo struct {
	Repository
	order       *models.Order
	listForShop func(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*OrderList, error)
}

func (s *stubRepo) WithTx(*gorm.DB) Repository { return s }

func (s *stubRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, ErrNotFound
	}
	return s.order, nil
}

func (s *stubRepo) ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if s.listForShop != nil {
		return s.listForShop(ctx, shopID, params)
	}
	return &OrderList{}, nil
}

func TestServiceGetHidesOrdersFromStrangers(t *testing.T) {
	buyer, shop, otherShop := uuid.New(), uuid.New(), uuid.New()
	order := dbtest.Order(buyer,
		dbtest.Group(shop, 30, dbtest.Item(uuid.New(), 1000, 1)),
		dbtest.Group(otherShop, 3, dbtest.Item(uuid.New(), 100, 1)),
	)
	delivered := time.Now().UTC()
	for i := range order.ShopGroups {
		order.ShopGroups[i].DeliveredAt = &delivered
		order.ShopGroups[i].Fulfillment = map[string]any{"key": "secret"}
	}

	svc, err := NewService(&stubRepo{order: order})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	view, err := svc.Get(ctx, auth.Actor{UserID: buyer, Role: enums.UserRoleBuyer}, order.ID)
	if err != nil {
		t.Fatalf("buyer get: %v", err)
	}
	for _, group := range view.ShopGroups {
		if group.Fulfillment == nil {
			t.Fatalf("buyer should see fulfillment for shop %s", group.ShopID)
		}
	}

	seller := auth.Actor{UserID: uuid.New(), Role: enums.UserRoleSeller, ShopID: &shop}
	view, err = svc.Get(ctx, seller, order.ID)
	if err != nil {
		t.Fatalf("seller get: %v", err)
	}
	for _, group := range view.ShopGroups {
		if group.ShopID == otherShop && group.Fulfillment != nil {
			t.Fatalf("seller must not see another shop's fulfillment")
		}
		if group.ShopID == shop && group.Fulfillment == nil {
			t.Fatalf("seller should see own fulfillment")
		}
	}

	_, err = svc.Get(ctx, auth.Actor{UserID: uuid.New(), Role: enums.UserRoleBuyer}, order.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
}

func TestServiceListForShopRequiresOwnership(t *testing.T) {
	shop := uuid.New()
	called := false
	svc, err := NewService(&stubRepo{listForShop: func(_ context.Context, shopID uuid.UUID, _ pagination.Params) (*OrderList, error) {
		called = true
		if shopID != shop {
			t.Fatalf("unexpected shop %s", shopID)
		}
		return &OrderList{NextCursor: "next"}, nil
	}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	_, err = svc.ListForShop(ctx, auth.Actor{UserID: uuid.New(), Role: enums.UserRoleSeller}, shop, pagination.Params{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) || called {
		t.Fatalf("expected forbidden before query, got %v", err)
	}

	_, err = svc.ListForShop(ctx, auth.Actor{UserID: uuid.New(), Role: enums.UserRoleSeller, ShopID: &shop}, shop, pagination.Params{Cursor: "%%%"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad cursor, got %v", err)
	}

	list, err := svc.ListForShop(ctx, auth.Actor{UserID: uuid.New(), Role: enums.UserRoleSeller, ShopID: &shop}, shop, pagination.Params{})
	if err != nil || !called || list.NextCursor != "next" {
		t.Fatalf("unexpected list result %+v err=%v", list, err)
	}
}
