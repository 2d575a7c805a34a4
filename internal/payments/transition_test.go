package payments

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/digimart-backend/internal/gateway"
	"github.com/angelmondragon/digimart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

func pendingOrder() *models.Order {
	order := dbtest.Order(uuid.New(), dbtest.Group(uuid.New(), 30, dbtest.Item(uuid.New(), 1000, 1)))
	ref := "pay_1"
	order.ChargeReference = &ref
	return order
}

func TestTransition(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	paidAt := now.Add(-time.Minute)

	tests := []struct {
		name    string
		mutate  func(*models.Order)
		charge  gateway.Charge
		changed bool
		payment enums.PaymentStatus
		status  enums.OrderStatus
		cancel  bool
	}{
		{
			name:    "successful",
			charge:  gateway.Charge{Status: enums.ChargeStatusSuccessful, Paid: true, PaidAt: &paidAt},
			changed: true, payment: enums.PaymentStatusCompleted, status: enums.OrderStatusPending,
		},
		{
			name: "successful after delivery",
			mutate: func(o *models.Order) {
				o.DeliveredAt = &now
			},
			charge:  gateway.Charge{Status: enums.ChargeStatusSuccessful, Paid: true},
			changed: true, payment: enums.PaymentStatusCompleted, status: enums.OrderStatusProcessing,
		},
		{
			name:   "successful but unpaid",
			charge: gateway.Charge{Status: enums.ChargeStatusSuccessful},
		},
		{
			name:    "failed",
			charge:  gateway.Charge{Status: enums.ChargeStatusFailed},
			changed: true, payment: enums.PaymentStatusFailed, status: enums.OrderStatusPending,
		},
		{
			name:    "expired",
			charge:  gateway.Charge{Status: enums.ChargeStatusExpired},
			changed: true, payment: enums.PaymentStatusFailed, status: enums.OrderStatusCancelled, cancel: true,
		},
		{
			name:   "still pending",
			charge: gateway.Charge{Status: enums.ChargeStatusPending},
		},
		{
			name: "already completed",
			mutate: func(o *models.Order) {
				o.PaymentStatus = enums.PaymentStatusCompleted
			},
			charge: gateway.Charge{Status: enums.ChargeStatusFailed},
		},
		{
			name: "cancelled",
			mutate: func(o *models.Order) {
				o.OrderStatus = enums.OrderStatusCancelled
			},
			charge: gateway.Charge{Status: enums.ChargeStatusSuccessful, Paid: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := pendingOrder()
			if tt.mutate != nil {
				tt.mutate(order)
			}
			out := Transition(order, tt.charge, now)
			require.Equal(t, tt.changed, out.Changed)
			if !tt.changed {
				return
			}
			assert.Equal(t, tt.payment, out.PaymentStatus)
			assert.Equal(t, tt.status, out.OrderStatus)
			assert.Equal(t, tt.cancel, out.Cancel)
			if tt.payment == enums.PaymentStatusCompleted {
				assert.NotNil(t, out.PaidAt, "completed payment needs paid_at")
			}
		})
	}
	out := Transition(pendingOrder(), gateway.Charge{Status: enums.ChargeStatusSuccessful, Paid: true, PaidAt: &paidAt}, now)
	require.NotNil(t, out.PaidAt)
	assert.True(t, out.PaidAt.Equal(paidAt), "expected gateway paid_at %s, got %s", paidAt, out.PaidAt)
}

func TestCanResyncAndCapturedAfterCancel(t *testing.T) {
	pending := gateway.Charge{Status: enums.ChargeStatusPending}
	captured := gateway.Charge{Status: enums.ChargeStatusSuccessful, Paid: true}

	failed := pendingOrder()
	failed.PaymentStatus = enums.PaymentStatusFailed
	assert.True(t, CanResync(failed, pending), "failed order with pending charge should resync")
	assert.False(t, CanResync(failed, captured), "resync only applies to pending charges")
	failed.OrderStatus = enums.OrderStatusCancelled
	assert.False(t, CanResync(failed, pending), "cancelled orders never resync")

	cancelled := pendingOrder()
	cancelled.OrderStatus = enums.OrderStatusCancelled
	assert.True(t, CapturedAfterCancel(cancelled, captured), "expected late capture to be detected")
	status := enums.RefundStatusPending
	cancelled.RefundStatus = &status
	assert.False(t, CapturedAfterCancel(cancelled, captured), "an existing refund must not trigger another")
}
