package shops

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
)

// DestinationView hides the raw account reference behind its last four characters.
type DestinationView struct {
	ID         uuid.UUID                   `json:"id"`
	Type       enums.PayoutDestinationType `json:"type"`
	Label      string                      `json:"label"`
	Last4      string                      `json:"last4"`
	IsEnabled  bool                        `json:"is_enabled"`
	IsVerified bool                        `json:"is_verified"`
	IsDefault  bool                        `json:"is_default"`
	Payable    bool                        `json:"payable"`
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shops repository required")
	}
	return &Service{repo: repo}, nil
}

// Authorize allows admins and the operator of shopID.
func Authorize(actor auth.Actor, shopID uuid.UUID) error {
	if actor.IsAdmin() || actor.OwnsShop(shopID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "shop access denied")
}

func (s *Service) ListDestinations(ctx context.Context, actor auth.Actor, shopID uuid.UUID) ([]DestinationView, error) {
	if err := Authorize(actor, shopID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListDestinations(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payout destinations")
	}
	out := make([]DestinationView, 0, len(rows))
	for i := range rows {
		out = append(out, newDestinationView(&rows[i]))
	}
	return out, nil
}

// ResolveDestination picks the explicit destination or the shop's first payable one.
func (s *Service) ResolveDestination(ctx context.Context, shopID uuid.UUID, destinationID *uuid.UUID) (*models.PayoutDestination, error) {
	if destinationID != nil {
		dest, err := s.repo.FindDestination(ctx, shopID, *destinationID)
		if errors.Is(err, ErrDestinationNotFound) {
			return nil, pkgerrors.FieldError("destination_id", "payout destination not found")
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payout destination")
		}
		if !dest.Payable() {
			return nil, pkgerrors.FieldError("destination_id", "payout destination is not enabled and verified")
		}
		return dest, nil
	}

	rows, err := s.repo.ListDestinations(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payout destinations")
	}
	for i := range rows {
		if rows[i].Payable() {
			return &rows[i], nil
		}
	}
	return nil, pkgerrors.FieldError("destination_id", "shop has no enabled, verified payout destination").
		WithDetails(map[string]string{"shop_id": shopID.String(), "destination_id": "shop has no enabled, verified payout destination"})
}

func newDestinationView(dest *models.PayoutDestination) DestinationView {
	last4 := dest.AccountReference
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}
	return DestinationView{
		ID:         dest.ID,
		Type:       dest.Type,
		Label:      dest.Label,
		Last4:      last4,
		IsEnabled:  dest.IsEnabled,
		IsVerified: dest.IsVerified,
		IsDefault:  dest.IsDefault,
		Payable:    dest.Payable(),
	}
}
