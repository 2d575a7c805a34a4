// Package gateway adapts the external payment processors to the operations the
// reconciliation engine consumes: charges, refunds and seller transfers.
package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
)

type ChargeRequest struct {
	OrderID     uuid.UUID
	Amount      int64
	Currency    enums.Currency
	Method      enums.PaymentMethod
	SourceToken string
}

type Charge struct {
	Reference string
	Status    enums.ChargeStatus
	Paid      bool
	PaidAt    *time.Time
}

type RefundRequest struct {
	OrderID         uuid.UUID
	ChargeReference string
	Amount          int64
	Currency        enums.Currency
	Reason          string
}

type Refund struct {
	Reference string
	Status    enums.RefundStatus
}

type TransferRequest struct {
	PayoutID    uuid.UUID
	Destination string
	Amount      int64
	Currency    enums.Currency
}

type Transfer struct {
	Reference string
	Amount    int64
	Reversed  bool
}

// Charges creates and inspects buyer charges. FindCharge locates the charge created
// for an order whose CreateCharge outcome was never observed; a nil charge means the
// processor has none.
type Charges interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	GetCharge(ctx context.Context, reference string) (*Charge, error)
	FindCharge(ctx context.Context, orderID uuid.UUID, since time.Time) (*Charge, error)
}

// Refunds returns captured funds to buyers.
type Refunds interface {
	CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error)
	GetRefund(ctx context.Context, reference string) (*Refund, error)
}

// Transfers pays sellers out of the platform balance.
type Transfers interface {
	CreateTransfer(ctx context.Context, req TransferRequest) (*Transfer, error)
	FindTransfers(ctx context.Context, payoutID uuid.UUID) ([]Transfer, error)
}

// UnknownOutcome reports whether err leaves the remote side effect undetermined,
// as with timeouts, transport failures and 5xx responses.
func UnknownOutcome(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return true
	}
	switch typed.Code() {
	case pkgerrors.CodeDependency, pkgerrors.CodeInternal:
		return true
	default:
		return false
	}
}
