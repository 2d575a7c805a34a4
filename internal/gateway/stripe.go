package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	stripego "github.com/stripe/stripe-go/v84"

	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/stripe"
)

type stripeAPI interface {
	CreateTransfer(ctx context.Context, params stripe.TransferParams) (*stripego.Transfer, error)
	ListTransfersByGroup(ctx context.Context, group string) ([]*stripego.Transfer, error)
}

// StripeGateway pays sellers with Connect transfers grouped by payout id.
type StripeGateway struct {
	api stripeAPI
}

func NewStripeGateway(api stripeAPI) (*StripeGateway, error) {
	if api == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &StripeGateway{api: api}, nil
}

func (g *StripeGateway) CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error) {
	if strings.TrimSpace(req.Destination) == "" {
		return nil, pkgerrors.FieldError("destination", "payout destination has no account reference")
	}
	transfer, err := g.api.CreateTransfer(ctx, stripe.TransferParams{
		Amount:         req.Amount,
		Currency:       string(req.Currency),
		Destination:    req.Destination,
		TransferGroup:  req.PayoutID.String(),
		IdempotencyKey: "payout-" + req.PayoutID.String(),
		Description:    "marketplace payout " + req.PayoutID.String(),
	})
	if err != nil {
		return nil, err
	}
	return toTransfer(transfer), nil
}

// FindTransfers lists transfers created for payoutID, used to settle payouts with an unknown outcome.
func (g *StripeGateway) FindTransfers(ctx context.Context, payoutID uuid.UUID) ([]Transfer, error) {
	transfers, err := g.api.ListTransfersByGroup(ctx, payoutID.String())
	if err != nil {
		return nil, err
	}
	out := make([]Transfer, 0, len(transfers))
	for _, transfer := range transfers {
		if transfer == nil {
			continue
		}
		out = append(out, *toTransfer(transfer))
	}
	return out, nil
}

func toTransfer(transfer *stripego.Transfer) *Transfer {
	return &Transfer{
		Reference: transfer.ID,
		Amount:    transfer.Amount,
		Reversed:  transfer.Reversed,
	}
}
