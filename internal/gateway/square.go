package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/square"
)

type squareAPI interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*square.PaymentSnapshot, error)
	GetPayment(ctx context.Context, paymentID string) (*square.PaymentSnapshot, error)
	FindPaymentByReference(ctx context.Context, referenceID string, since time.Time) (*square.PaymentSnapshot, error)
	RefundPayment(ctx context.Context, params square.RefundParams) (*square.RefundSnapshot, error)
	GetRefund(ctx context.Context, refundID string) (*square.RefundSnapshot, error)
	LocationID() string
}

// SquareGateway routes charges and refunds through Square.
type SquareGateway struct {
	api squareAPI
}

func NewSquareGateway(api squareAPI) (*SquareGateway, error) {
	if api == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &SquareGateway{api: api}, nil
}

// CreateCharge is keyed on the order id so a retried checkout never charges twice.
func (g *SquareGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if strings.TrimSpace(req.SourceToken) == "" {
		return nil, pkgerrors.FieldError("source_token", "payment source is required")
	}
	payment, err := g.api.CreatePayment(ctx, square.PaymentCreateParams{
		AmountMinor:    req.Amount,
		Currency:       string(req.Currency),
		LocationID:     g.api.LocationID(),
		SourceID:       req.SourceToken,
		IdempotencyKey: "charge-" + req.OrderID.String(),
		ReferenceID:    req.OrderID.String(),
		Note:           string(req.Method),
	})
	if err != nil {
		return nil, err
	}
	return ChargeFromSquare(payment), nil
}

func (g *SquareGateway) GetCharge(ctx context.Context, reference string) (*Charge, error) {
	payment, err := g.api.GetPayment(ctx, reference)
	if err != nil {
		return nil, err
	}
	return ChargeFromSquare(payment), nil
}

// FindCharge looks the order's payment up by the reference id CreateCharge stamps on it.
func (g *SquareGateway) FindCharge(ctx context.Context, orderID uuid.UUID, since time.Time) (*Charge, error) {
	payment, err := g.api.FindPaymentByReference(ctx, orderID.String(), since)
	if err != nil || payment == nil {
		return nil, err
	}
	return ChargeFromSquare(payment), nil
}

// CreateRefund is keyed on the order id; an order is refunded at most once.
func (g *SquareGateway) CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	refund, err := g.api.RefundPayment(ctx, square.RefundParams{
		PaymentID:      req.ChargeReference,
		AmountMinor:    req.Amount,
		Currency:       string(req.Currency),
		Reason:         req.Reason,
		IdempotencyKey: "refund-" + req.OrderID.String(),
	})
	if err != nil {
		return nil, err
	}
	return &Refund{Reference: refund.ID, Status: RefundStatusFromSquare(refund.Status)}, nil
}

func (g *SquareGateway) GetRefund(ctx context.Context, reference string) (*Refund, error) {
	refund, err := g.api.GetRefund(ctx, reference)
	if err != nil {
		return nil, err
	}
	return &Refund{Reference: refund.ID, Status: RefundStatusFromSquare(refund.Status)}, nil
}

// ChargeFromSquare converts a Square payment into a gateway charge snapshot.
func ChargeFromSquare(payment *square.PaymentSnapshot) *Charge {
	status := ChargeStatusFromSquare(payment.Status)
	charge := &Charge{
		Reference: payment.ID,
		Status:    status,
		Paid:      status == enums.ChargeStatusSuccessful,
	}
	if charge.Paid {
		charge.PaidAt = payment.UpdatedAt
	}
	return charge
}

// ChargeStatusFromSquare maps a Square payment status onto the gateway charge axis.
func ChargeStatusFromSquare(status string) enums.ChargeStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case square.PaymentStatusCompleted:
		return enums.ChargeStatusSuccessful
	case square.PaymentStatusFailed:
		return enums.ChargeStatusFailed
	case square.PaymentStatusCanceled:
		return enums.ChargeStatusExpired
	default:
		return enums.ChargeStatusPending
	}
}

// RefundStatusFromSquare maps a Square refund status onto the order refund axis.
func RefundStatusFromSquare(status string) enums.RefundStatus {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case square.RefundStatusCompleted:
		return enums.RefundStatusSucceeded
	case square.RefundStatusRejected, square.RefundStatusFailed:
		return enums.RefundStatusFailed
	default:
		return enums.RefundStatusPending
	}
}
