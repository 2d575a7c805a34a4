package balance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/internal/shops"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
)

type Service interface {
	Get(ctx context.Context, actor auth.Actor, shopID uuid.UUID) (*Balance, error)
	EligibleOrders(ctx context.Context, shopID uuid.UUID) ([]Entry, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("balance repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, shopID uuid.UUID) (*Balance, error) {
	if err := shops.Authorize(actor, shopID); err != nil {
		return nil, err
	}
	confirmed, err := s.repo.Confirmed(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load confirmed earnings")
	}
	pending, err := s.repo.Pending(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load pending earnings")
	}
	balance := Compute(s.now(), confirmed, pending)
	return &balance, nil
}

// EligibleOrders lists withdrawable entries oldest-confirmed first.
func (s *service) EligibleOrders(ctx context.Context, shopID uuid.UUID) ([]Entry, error) {
	rows, err := s.repo.Eligible(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load eligible orders")
	}
	return rows, nil
}
