// Package squarewebhook applies Square payment and refund notifications to orders.
package squarewebhook

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/digimart-backend/internal/gateway"
	"github.com/angelmondragon/digimart-backend/internal/payments"
	"github.com/angelmondragon/digimart-backend/internal/refunds"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/square"
)

const (
	EventPaymentCreated = "payment.created"
	EventPaymentUpdated = "payment.updated"
	EventRefundCreated  = "refund.created"
	EventRefundUpdated  = "refund.updated"
)

type chargeHandler interface {
	HandleChargeUpdate(ctx context.Context, charge gateway.Charge) (*payments.Result, error)
}

type orderLookup interface {
	FindByChargeReference(ctx context.Context, chargeRef string) (*models.Order, error)
}

type refundReconciler interface {
	Reconcile(ctx context.Context, order *models.Order) (refunds.Outcome, bool, error)
}

type ServiceParams struct {
	Payments chargeHandler
	Orders   orderLookup
	Refunds  refundReconciler
	Logger   *logger.Logger
}

type Service struct {
	payments chargeHandler
	orders   orderLookup
	refunds  refundReconciler
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Payments == nil:
		return nil, fmt.Errorf("payment service required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Refunds == nil:
		return nil, fmt.Errorf("refund issuer required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &Service{payments: params.Payments, orders: params.Orders, refunds: params.Refunds, logg: params.Logger}, nil
}

// Event is the Square notification envelope.
type Event struct {
	MerchantID string    `json:"merchant_id"`
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	CreatedAt  string    `json:"created_at"`
	Data       EventData `json:"data"`
}

type EventData struct {
	Type   string      `json:"type"`
	ID     string      `json:"id"`
	Object EventObject `json:"object"`
}

type EventObject struct {
	Payment *square.PaymentSnapshot `json:"payment"`
	Refund  *square.RefundSnapshot  `json:"refund"`
}

// ReplayKey identifies the delivery for the replay guard.
func (e *Event) ReplayKey() string {
	if id := strings.TrimSpace(e.EventID); id != "" {
		return id
	}
	return e.Data.ID
}

// HandleEvent routes a verified notification. Events for charges this engine does
// not know are acknowledged; the payment-sync job covers a notification that beats
// the charge reference to the database.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"square_event_id": event.EventID, "square_event_type": event.Type})

	switch strings.ToLower(event.Type) {
	case EventPaymentCreated, EventPaymentUpdated:
		return s.handlePayment(ctx, event.Data.Object.Payment)
	case EventRefundCreated, EventRefundUpdated:
		return s.handleRefund(ctx, event.Data.Object.Refund)
	default:
		s.logg.Debug(ctx, "ignoring square event")
		return nil
	}
}

func (s *Service) handlePayment(ctx context.Context, payment *square.PaymentSnapshot) error {
	if payment == nil || payment.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}
	charge := gateway.ChargeFromSquare(payment)
	if charge.Status == enums.ChargeStatusPending {
		return nil
	}
	result, err := s.payments.HandleChargeUpdate(ctx, *charge)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		s.logg.Warn(s.logg.WithField(ctx, "charge_reference", charge.Reference), "no order for square payment")
		return nil
	}
	if err != nil {
		return err
	}
	if result != nil && result.Changed {
		s.logg.Info(s.logg.WithOrderID(ctx, result.Order.ID.String()), "payment status applied from webhook")
	}
	return nil
}

func (s *Service) handleRefund(ctx context.Context, refund *square.RefundSnapshot) error {
	if refund == nil || refund.PaymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund payload missing")
	}
	order, err := s.orders.FindByChargeReference(ctx, refund.PaymentID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "charge_reference", refund.PaymentID), "no order for square refund")
		return nil
	}
	if order.RefundStatus == nil || *order.RefundStatus != enums.RefundStatusPending {
		return nil
	}
	_, _, err = s.refunds.Reconcile(s.logg.WithOrderID(ctx, order.ID.String()), order)
	return err
}
