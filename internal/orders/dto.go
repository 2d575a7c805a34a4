package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// OrderList is one page of orders plus the cursor for the next page.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}

// OrderView is the API projection of an order.
type OrderView struct {
	ID                  uuid.UUID           `json:"id"`
	BuyerID             uuid.UUID           `json:"buyer_id"`
	ShopID              *uuid.UUID          `json:"shop_id,omitempty"`
	CartItemFingerprint []string            `json:"cart_item_fingerprint"`
	Currency            enums.Currency      `json:"currency"`
	GrossTotal          int64               `json:"gross_total"`
	PlatformFeeTotal    int64               `json:"platform_fee_total"`
	SellerNetAmount     int64               `json:"seller_net_amount"`
	PaymentStatus       enums.PaymentStatus `json:"payment_status"`
	OrderStatus         enums.OrderStatus   `json:"order_status"`
	PaymentMethod       enums.PaymentMethod `json:"payment_method"`
	ChargeReference     *string             `json:"charge_reference,omitempty"`
	PaidAt              *time.Time          `json:"paid_at,omitempty"`
	LastPaymentError    *string             `json:"last_payment_error,omitempty"`
	DeliveredAt         *time.Time          `json:"delivered_at,omitempty"`
	BuyerConfirmed      bool                `json:"buyer_confirmed"`
	BuyerConfirmedAt    *time.Time          `json:"buyer_confirmed_at,omitempty"`
	PayoutStatus        enums.PayoutStatus  `json:"payout_status"`
	PaidOutAmount       int64               `json:"paid_out_amount"`
	Refund              *RefundView         `json:"refund,omitempty"`
	CancelledAt         *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason        *string             `json:"cancel_reason,omitempty"`
	ShopGroups          []ShopGroupView     `json:"shop_groups"`
	IsDuplicate         bool                `json:"is_duplicate"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

type RefundView struct {
	Reference *string            `json:"refund_reference,omitempty"`
	Amount    int64              `json:"refunded_amount"`
	Status    enums.RefundStatus `json:"refund_status"`
	Error     *string            `json:"refund_error,omitempty"`
}

type ShopGroupView struct {
	ShopID            uuid.UUID          `json:"shop_id"`
	GrossAmount       int64              `json:"gross_amount"`
	PlatformFeeAmount int64              `json:"platform_fee_amount"`
	SellerNetAmount   int64              `json:"seller_net_amount"`
	PayoutStatus      enums.PayoutStatus `json:"payout_status"`
	PaidOutAmount     int64              `json:"paid_out_amount"`
	DeliveredAt       *time.Time         `json:"delivered_at,omitempty"`
	Fulfillment       map[string]any     `json:"fulfillment,omitempty"`
	Items             []LineItemView     `json:"items"`
}

type LineItemView struct {
	ProductID  uuid.UUID  `json:"product_id"`
	CartItemID *uuid.UUID `json:"cart_item_id,omitempty"`
	Name       string     `json:"name"`
	UnitPrice  int64      `json:"unit_price"`
	Quantity   int        `json:"quantity"`
	LineTotal  int64      `json:"line_total"`
}

// OrderListView is the paginated API projection.
type OrderListView struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// NewOrderView projects an order. Fulfillment payloads are only included when
// withFulfillment reports true for the group's shop.
func NewOrderView(order *models.Order, withFulfillment func(shopID uuid.UUID) bool) OrderView {
	view := OrderView{
		ID:                  order.ID,
		BuyerID:             order.BuyerID,
		ShopID:              order.ShopID,
		CartItemFingerprint: []string(order.CartItemFingerprint),
		Currency:            order.Currency,
		GrossTotal:          order.GrossTotal,
		PlatformFeeTotal:    order.PlatformFeeTotal,
		SellerNetAmount:     order.SellerNetAmount,
		PaymentStatus:       order.PaymentStatus,
		OrderStatus:         order.OrderStatus,
		PaymentMethod:       order.PaymentMethod,
		ChargeReference:     order.ChargeReference,
		PaidAt:              order.PaidAt,
		LastPaymentError:    order.LastPaymentError,
		DeliveredAt:         order.DeliveredAt,
		BuyerConfirmed:      order.BuyerConfirmed,
		BuyerConfirmedAt:    order.BuyerConfirmedAt,
		PayoutStatus:        order.PayoutStatus,
		PaidOutAmount:       order.PaidOutAmount,
		CancelledAt:         order.CancelledAt,
		CancelReason:        order.CancelReason,
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	}
	if view.CartItemFingerprint == nil {
		view.CartItemFingerprint = []string{}
	}
	if order.RefundStatus != nil {
		view.Refund = &RefundView{
			Reference: order.RefundReference,
			Amount:    order.RefundedAmount,
			Status:    *order.RefundStatus,
			Error:     order.RefundError,
		}
	}

	view.ShopGroups = make([]ShopGroupView, 0, len(order.ShopGroups))
	for _, group := range order.ShopGroups {
		gv := ShopGroupView{
			ShopID:            group.ShopID,
			GrossAmount:       group.GrossAmount,
			PlatformFeeAmount: group.PlatformFeeAmount,
			SellerNetAmount:   group.SellerNetAmount,
			PayoutStatus:      group.PayoutStatus,
			PaidOutAmount:     group.PaidOutAmount,
			DeliveredAt:       group.DeliveredAt,
			Items:             make([]LineItemView, 0, len(group.Items)),
		}
		if withFulfillment != nil && withFulfillment(group.ShopID) {
			gv.Fulfillment = group.Fulfillment
		}
		for _, item := range group.Items {
			gv.Items = append(gv.Items, LineItemView{
				ProductID:  item.ProductID,
				CartItemID: item.CartItemID,
				Name:       item.Name,
				UnitPrice:  item.UnitPrice,
				Quantity:   item.Quantity,
				LineTotal:  item.LineTotal,
			})
		}
		view.ShopGroups = append(view.ShopGroups, gv)
	}
	return view
}
