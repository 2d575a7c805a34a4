package inventory

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

type stubRepo struct {
	failFor   uuid.UUID
	decrement []uuid.UUID
	restore   []uuid.UUID
	cartBuyer uuid.UUID
	cartIDs   []uuid.UUID
}

func (s *stubRepo) WithTx(*gorm.DB) Repository { return s }

func (s *stubRepo) DecrementForSale(_ context.Context, productID uuid.UUID, _ int) error {
	if productID == s.failFor {
		return errors.New("row locked")
	}
	s.decrement = append(s.decrement, productID)
	return nil
}

func (s *stubRepo) RestoreForCancel(_ context.Context, productID uuid.UUID, _ int) error {
	s.restore = append(s.restore, productID)
	return nil
}

func (s *stubRepo) DeleteCartItems(_ context.Context, buyerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	s.cartBuyer, s.cartIDs = buyerID, ids
	return int64(len(ids)), nil
}

func (s *stubRepo) FindProducts(context.Context, []uuid.UUID) ([]models.Product, error) {
	return nil, nil
}

func (s *stubRepo) FindCartItems(context.Context, uuid.UUID, []uuid.UUID) ([]models.CartItem, error) {
	return nil, nil
}

func TestApplySaleContinuesPastFailingItem(t *testing.T) {
	broken, fine := uuid.New(), uuid.New()
	repo := &stubRepo{failFor: broken}
	buf := &bytes.Buffer{}
	svc, err := NewService(repo, logger.New(logger.Options{ServiceName: "test", Output: buf}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	order := dbtest.Order(uuid.New(),
		dbtest.Group(uuid.New(), 30, dbtest.Item(broken, 500, 1), dbtest.Item(fine, 500, 1)),
	)
	if applied := svc.ApplySale(context.Background(), order); applied != 1 {
		t.Fatalf("expected one applied item, got %d", applied)
	}
	if len(repo.decrement) != 1 || repo.decrement[0] != fine {
		t.Fatalf("unexpected decrements %v", repo.decrement)
	}
	if !strings.Contains(buf.String(), broken.String()) {
		t.Fatalf("expected failing product to be logged; log=%s", buf.String())
	}
}

func TestClearCartParsesFingerprint(t *testing.T) {
	repo := &stubRepo{}
	svc, err := NewService(repo, logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	buyer, line := uuid.New(), uuid.New()
	order := dbtest.Order(buyer, dbtest.Group(uuid.New(), 3, dbtest.Item(uuid.New(), 100, 1)))
	svc.ClearCart(context.Background(), order)
	if repo.cartIDs != nil {
		t.Fatalf("direct orders must not clear the cart")
	}

	order.CartItemFingerprint = pq.StringArray{line.String(), "not-a-uuid"}
	svc.ClearCart(context.Background(), order)
	if repo.cartBuyer != buyer || len(repo.cartIDs) != 1 || repo.cartIDs[0] != line {
		t.Fatalf("unexpected cart clear buyer=%s ids=%v", repo.cartBuyer, repo.cartIDs)
	}
}
