package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// Order is one checkout group. It may span several shops, one OrderShopGroup each.
type Order struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID             uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	ShopID              *uuid.UUID          `gorm:"column:shop_id;type:uuid"`
	CartItemFingerprint pq.StringArray      `gorm:"column:cart_item_fingerprint;type:text[]"`
	FingerprintKey      *string             `gorm:"column:fingerprint_key"`
	Currency            enums.Currency      `gorm:"column:currency;type:text;not null;default:'USD'"`
	GrossTotal          int64               `gorm:"column:gross_total;not null"`
	PlatformFeeTotal    int64               `gorm:"column:platform_fee_total;not null"`
	SellerNetAmount     int64               `gorm:"column:seller_net_amount;not null"`
	PaymentStatus       enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	OrderStatus         enums.OrderStatus   `gorm:"column:order_status;type:order_status;not null;default:'pending'"`
	PaymentMethod       enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	ChargeReference     *string             `gorm:"column:charge_reference"`
	PaidAt              *time.Time          `gorm:"column:paid_at"`
	LastPaymentError    *string             `gorm:"column:last_payment_error"`
	DeliveredAt         *time.Time          `gorm:"column:delivered_at"`
	BuyerConfirmed      bool                `gorm:"column:buyer_confirmed;not null;default:false"`
	BuyerConfirmedAt    *time.Time          `gorm:"column:buyer_confirmed_at"`
	PayoutStatus        enums.PayoutStatus  `gorm:"column:payout_status;type:payout_status;not null;default:'none'"`
	PaidOutAmount       int64               `gorm:"column:paid_out_amount;not null;default:0"`
	RefundReference     *string             `gorm:"column:refund_reference"`
	RefundedAmount      int64               `gorm:"column:refunded_amount;not null;default:0"`
	RefundStatus        *enums.RefundStatus `gorm:"column:refund_status;type:refund_status"`
	RefundError         *string             `gorm:"column:refund_error"`
	CancelledAt         *time.Time          `gorm:"column:cancelled_at"`
	CancelledBy         *uuid.UUID          `gorm:"column:cancelled_by;type:uuid"`
	CancelReason        *string             `gorm:"column:cancel_reason"`
	ShopGroups          []OrderShopGroup    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// FromCart reports whether the order originated from cart lines.
func (o *Order) FromCart() bool {
	return len(o.CartItemFingerprint) > 0
}

// LineItems flattens the line items of every shop group.
func (o *Order) LineItems() []OrderLineItem {
	var items []OrderLineItem
	for _, group := range o.ShopGroups {
		items = append(items, group.Items...)
	}
	return items
}

// Group returns the shop group owned by shopID, if any.
func (o *Order) Group(shopID uuid.UUID) *OrderShopGroup {
	for i := range o.ShopGroups {
		if o.ShopGroups[i].ShopID == shopID {
			return &o.ShopGroups[i]
		}
	}
	return nil
}

// OrderShopGroup is the slice of an order belonging to one seller. The payout
// axis lives here so multi-shop orders pay each seller independently.
type OrderShopGroup struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null"`
	ShopID            uuid.UUID          `gorm:"column:shop_id;type:uuid;not null"`
	GrossAmount       int64              `gorm:"column:gross_amount;not null"`
	PlatformFeeAmount int64              `gorm:"column:platform_fee_amount;not null"`
	SellerNetAmount   int64              `gorm:"column:seller_net_amount;not null"`
	PayoutStatus      enums.PayoutStatus `gorm:"column:payout_status;type:payout_status;not null;default:'none'"`
	PaidOutAmount     int64              `gorm:"column:paid_out_amount;not null;default:0"`
	DeliveredAt       *time.Time         `gorm:"column:delivered_at"`
	Fulfillment       map[string]any     `gorm:"column:fulfillment;type:jsonb;serializer:json"`
	Items             []OrderLineItem    `gorm:"foreignKey:ShopGroupID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (g *OrderShopGroup) BeforeCreate(*gorm.DB) error {
	assignID(&g.ID)
	return nil
}

// Withdrawable is the part of the seller net not yet paid out.
func (g *OrderShopGroup) Withdrawable() int64 {
	if g.PayoutStatus == enums.PayoutStatusPaid {
		return 0
	}
	return g.SellerNetAmount - g.PaidOutAmount
}

// OrderLineItem snapshots a purchased product at checkout time.
type OrderLineItem struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;not null"`
	ShopGroupID uuid.UUID  `gorm:"column:shop_group_id;type:uuid;not null"`
	ShopID      uuid.UUID  `gorm:"column:shop_id;type:uuid;not null"`
	ProductID   uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	CartItemID  *uuid.UUID `gorm:"column:cart_item_id;type:uuid"`
	Name        string     `gorm:"column:name;not null"`
	UnitPrice   int64      `gorm:"column:unit_price;not null"`
	Quantity    int        `gorm:"column:quantity;not null;default:1"`
	LineTotal   int64      `gorm:"column:line_total;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderLineItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
