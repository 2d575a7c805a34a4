package payments

import (
	"time"

	"github.com/angelmondragon/digimart-backend/internal/gateway"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// Outcome is the effect of a charge snapshot on an order. A zero Outcome is a no-op.
type Outcome struct {
	Changed       bool
	PaymentStatus enums.PaymentStatus
	OrderStatus   enums.OrderStatus
	Cancel        bool
	PaidAt        *time.Time
	Reason        string
}

// Transition maps a charge snapshot onto the order's payment axis. Only orders still
// awaiting payment move; everything else is a no-op so replays converge.
func Transition(order *models.Order, charge gateway.Charge, now time.Time) Outcome {
	if order == nil || order.PaymentStatus != enums.PaymentStatusPending || order.OrderStatus == enums.OrderStatusCancelled {
		return Outcome{}
	}
	switch charge.Status {
	case enums.ChargeStatusSuccessful:
		if !charge.Paid {
			return Outcome{}
		}
		paidAt := now
		if charge.PaidAt != nil {
			paidAt = charge.PaidAt.UTC()
		}
		status := order.OrderStatus
		if order.DeliveredAt != nil {
			status = enums.OrderStatusProcessing
		}
		return Outcome{
			Changed:       true,
			PaymentStatus: enums.PaymentStatusCompleted,
			OrderStatus:   status,
			PaidAt:        &paidAt,
		}
	case enums.ChargeStatusFailed:
		return Outcome{
			Changed:       true,
			PaymentStatus: enums.PaymentStatusFailed,
			OrderStatus:   order.OrderStatus,
			Reason:        "charge failed at gateway",
		}
	case enums.ChargeStatusExpired:
		return Outcome{
			Changed:       true,
			PaymentStatus: enums.PaymentStatusFailed,
			OrderStatus:   enums.OrderStatusCancelled,
			Cancel:        true,
			Reason:        "charge expired",
		}
	default:
		return Outcome{}
	}
}

// CanResync reports whether a failed order may return to pending because the gateway
// still reports the charge as pending.
func CanResync(order *models.Order, charge gateway.Charge) bool {
	return order != nil &&
		order.PaymentStatus == enums.PaymentStatusFailed &&
		order.OrderStatus != enums.OrderStatusCancelled &&
		charge.Status == enums.ChargeStatusPending
}

// CapturedAfterCancel reports a successful charge on an order that was cancelled
// before payment settled. The funds must be returned.
func CapturedAfterCancel(order *models.Order, charge gateway.Charge) bool {
	return order != nil &&
		order.OrderStatus == enums.OrderStatusCancelled &&
		order.PaymentStatus == enums.PaymentStatusPending &&
		order.RefundStatus == nil &&
		charge.Status == enums.ChargeStatusSuccessful &&
		charge.Paid
}

func (o Outcome) updates() map[string]any {
	updates := map[string]any{
		"payment_status": o.PaymentStatus,
		"order_status":   o.OrderStatus,
	}
	if o.PaidAt != nil {
		updates["paid_at"] = *o.PaidAt
		updates["last_payment_error"] = nil
	}
	if o.Reason != "" {
		updates["last_payment_error"] = o.Reason
	}
	return updates
}
