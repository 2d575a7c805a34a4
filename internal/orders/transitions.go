package orders

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
)

var (
	// ErrEscrowLocked rejects payout marking on an order the buyer has not confirmed.
	ErrEscrowLocked = errors.New("payout locked until buyer confirmation")
	// ErrOverdraw rejects an allocation larger than the group's withdrawable amount.
	ErrOverdraw = errors.New("allocation exceeds withdrawable amount")
)

// State is the authoritative snapshot attached to conflict errors.
type State struct {
	OrderID        uuid.UUID           `json:"order_id"`
	PaymentStatus  enums.PaymentStatus `json:"payment_status"`
	OrderStatus    enums.OrderStatus   `json:"order_status"`
	PayoutStatus   enums.PayoutStatus  `json:"payout_status"`
	BuyerConfirmed bool                `json:"buyer_confirmed"`
	Delivered      bool                `json:"delivered"`
	PaidOutAmount  int64               `json:"paid_out_amount"`
}

func StateOf(order *models.Order) State {
	return State{
		OrderID:        order.ID,
		PaymentStatus:  order.PaymentStatus,
		OrderStatus:    order.OrderStatus,
		PayoutStatus:   order.PayoutStatus,
		BuyerConfirmed: order.BuyerConfirmed,
		Delivered:      order.DeliveredAt != nil,
		PaidOutAmount:  order.PaidOutAmount,
	}
}

// Conflict builds a state conflict carrying the order's current state.
func Conflict(order *models.Order, msg string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).WithDetails(StateOf(order))
}

// CheckDeliverable returns the shop group the seller may deliver.
func CheckDeliverable(order *models.Order, shopID uuid.UUID) (*models.OrderShopGroup, error) {
	group := order.Group(shopID)
	if group == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop is not part of this order")
	}
	if order.OrderStatus != enums.OrderStatusPending && order.OrderStatus != enums.OrderStatusProcessing {
		return nil, Conflict(order, fmt.Sprintf("cannot deliver an order in status %s", order.OrderStatus))
	}
	if order.PaymentStatus != enums.PaymentStatusCompleted {
		return nil, Conflict(order, "payment has not completed")
	}
	if RefundActive(order) {
		return nil, Conflict(order, "order is being refunded")
	}
	return group, nil
}

// CheckConfirmable enforces that only the buyer confirms a delivered order, once.
func CheckConfirmable(order *models.Order, buyerID uuid.UUID) error {
	if order.BuyerID != buyerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can confirm receipt")
	}
	if order.BuyerConfirmed {
		return pkgerrors.New(pkgerrors.CodeConflict, "order already confirmed").WithDetails(StateOf(order))
	}
	if order.OrderStatus == enums.OrderStatusCancelled {
		return Conflict(order, "order is cancelled")
	}
	if order.PaymentStatus != enums.PaymentStatusCompleted {
		return Conflict(order, "payment has not completed")
	}
	if order.DeliveredAt == nil {
		return Conflict(order, "order has not been delivered")
	}
	if RefundActive(order) {
		return Conflict(order, "order is being refunded")
	}
	return nil
}

// RefundActive reports a refund that is pending or already returned the funds.
func RefundActive(order *models.Order) bool {
	if order.RefundStatus == nil {
		return false
	}
	return *order.RefundStatus == enums.RefundStatusPending || *order.RefundStatus == enums.RefundStatusSucceeded
}

// CheckCancellable rejects terminal and completed orders.
func CheckCancellable(order *models.Order) error {
	switch order.OrderStatus {
	case enums.OrderStatusCancelled:
		return pkgerrors.New(pkgerrors.CodeConflict, "order already cancelled").WithDetails(StateOf(order))
	case enums.OrderStatusCompleted:
		return Conflict(order, "completed orders cannot be cancelled")
	}
	return nil
}

// PlanAllocation computes the payout axis of a shop group after amount is paid out of it.
func PlanAllocation(group *models.OrderShopGroup, buyerConfirmed bool, amount int64) (enums.PayoutStatus, int64, error) {
	if !buyerConfirmed {
		return "", 0, ErrEscrowLocked
	}
	if amount <= 0 {
		return "", 0, fmt.Errorf("allocation must be positive")
	}
	if amount > group.Withdrawable() {
		return "", 0, ErrOverdraw
	}

	paidOut := group.PaidOutAmount + amount
	next := enums.PayoutStatusPartial
	if paidOut == group.SellerNetAmount {
		next = enums.PayoutStatusPaid
	}
	if !group.PayoutStatus.CanAdvanceTo(next) {
		return "", 0, fmt.Errorf("payout status cannot move from %s to %s", group.PayoutStatus, next)
	}
	return next, paidOut, nil
}

// RollupPayout derives the order-level payout axis from its shop groups.
func RollupPayout(groups []models.OrderShopGroup) (enums.PayoutStatus, int64) {
	var paidOut int64
	allPaid := len(groups) > 0
	released := true
	for _, group := range groups {
		paidOut += group.PaidOutAmount
		if group.PayoutStatus != enums.PayoutStatusPaid {
			allPaid = false
		}
		if group.PayoutStatus == enums.PayoutStatusNone {
			released = false
		}
	}

	switch {
	case allPaid:
		return enums.PayoutStatusPaid, paidOut
	case paidOut > 0:
		return enums.PayoutStatusPartial, paidOut
	case released && len(groups) > 0:
		return enums.PayoutStatusReady, paidOut
	default:
		return enums.PayoutStatusNone, paidOut
	}
}
