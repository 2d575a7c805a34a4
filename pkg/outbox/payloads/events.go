package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// ShopAmount carries one shop group's money split inside an order event.
type ShopAmount struct {
	ShopID          uuid.UUID `json:"shop_id"`
	GrossAmount     int64     `json:"gross_amount"`
	SellerNetAmount int64     `json:"seller_net_amount"`
}

// OrderCreatedEvent signals a new pending order awaiting payment.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	Shops         []ShopAmount        `json:"shops"`
	GrossTotal    int64               `json:"gross_total"`
	Currency      enums.Currency      `json:"currency"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	FromCart      bool                `json:"from_cart"`
}

// PaymentStatusEvent is emitted when reconciliation moves a charge to a terminal state.
type PaymentStatusEvent struct {
	OrderID         uuid.UUID           `json:"order_id"`
	BuyerID         uuid.UUID           `json:"buyer_id"`
	Shops           []ShopAmount        `json:"shops"`
	PaymentStatus   enums.PaymentStatus `json:"payment_status"`
	OrderStatus     enums.OrderStatus   `json:"order_status"`
	ChargeReference string              `json:"charge_reference,omitempty"`
	GrossTotal      int64               `json:"gross_total"`
	Currency        enums.Currency      `json:"currency"`
	Reason          string              `json:"reason,omitempty"`
	OccurredAt      time.Time           `json:"occurred_at"`
}

// OrderDeliveredEvent tells the buyer a seller handed over the goods.
type OrderDeliveredEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	BuyerID      uuid.UUID `json:"buyer_id"`
	ShopID       uuid.UUID `json:"shop_id"`
	AllDelivered bool      `json:"all_delivered"`
	DeliveredAt  time.Time `json:"delivered_at"`
}

// OrderConfirmedEvent marks escrow release for every shop in the order.
type OrderConfirmedEvent struct {
	OrderID     uuid.UUID      `json:"order_id"`
	BuyerID     uuid.UUID      `json:"buyer_id"`
	Shops       []ShopAmount   `json:"shops"`
	GrossTotal  int64          `json:"gross_total"`
	Currency    enums.Currency `json:"currency"`
	ConfirmedAt time.Time      `json:"confirmed_at"`
}

// OrderCancelledEvent is emitted whenever an order is reversed.
type OrderCancelledEvent struct {
	OrderID        uuid.UUID           `json:"order_id"`
	BuyerID        uuid.UUID           `json:"buyer_id"`
	Shops          []ShopAmount        `json:"shops"`
	CancelledBy    *uuid.UUID          `json:"cancelled_by,omitempty"`
	Reason         string              `json:"reason,omitempty"`
	RefundStatus   *enums.RefundStatus `json:"refund_status,omitempty"`
	RefundedAmount int64               `json:"refunded_amount"`
	GrossTotal     int64               `json:"gross_total"`
	Currency       enums.Currency      `json:"currency"`
	CancelledAt    time.Time           `json:"cancelled_at"`
}

// RefundRecordedEvent captures the gateway outcome of a refund attempt.
type RefundRecordedEvent struct {
	OrderID         uuid.UUID          `json:"order_id"`
	BuyerID         uuid.UUID          `json:"buyer_id"`
	RefundReference string             `json:"refund_reference,omitempty"`
	Amount          int64              `json:"amount"`
	Status          enums.RefundStatus `json:"status"`
	Error           string             `json:"error,omitempty"`
}

// PayoutEvent reports a terminal payout outcome to the owning shop.
type PayoutEvent struct {
	PayoutID          uuid.UUID                `json:"payout_id"`
	ShopID            uuid.UUID                `json:"shop_id"`
	Amount            int64                    `json:"amount"`
	Currency          enums.Currency           `json:"currency"`
	Status            enums.PayoutRecordStatus `json:"status"`
	OrderIDs          []uuid.UUID              `json:"order_ids"`
	TransferReference string                   `json:"transfer_reference,omitempty"`
	FailureReason     string                   `json:"failure_reason,omitempty"`
	OccurredAt        time.Time                `json:"occurred_at"`
}
