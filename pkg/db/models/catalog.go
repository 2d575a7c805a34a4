package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// UnlimitedStock marks a product whose stock counter is never decremented.
const UnlimitedStock int64 = -1

// Product holds the inventory counters touched by payment and cancellation.
type Product struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ShopID    uuid.UUID `gorm:"column:shop_id;type:uuid;not null"`
	Name      string    `gorm:"column:name;not null"`
	Price     int64     `gorm:"column:price;not null"`
	Stock     int64     `gorm:"column:stock;not null;default:0"`
	SoldCount int64     `gorm:"column:sold_count;not null;default:0"`
	IsActive  bool      `gorm:"column:is_active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// Unlimited reports whether the stock counter carries the unlimited sentinel.
func (p *Product) Unlimited() bool {
	return p.Stock == UnlimitedStock
}

// Shop is the seller storefront with its denormalized sales counters.
type Shop struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerUserID uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null"`
	Name        string    `gorm:"column:name;not null"`
	TotalSales  int64     `gorm:"column:total_sales;not null;default:0"`
	TotalOrders int64     `gorm:"column:total_orders;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shop) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// PayoutDestination is a seller account able to receive transfers.
type PayoutDestination struct {
	ID               uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	ShopID           uuid.UUID                   `gorm:"column:shop_id;type:uuid;not null"`
	Type             enums.PayoutDestinationType `gorm:"column:type;type:payout_destination_type;not null"`
	AccountReference string                      `gorm:"column:account_reference;not null"`
	Label            string                      `gorm:"column:label;not null"`
	IsEnabled        bool                        `gorm:"column:is_enabled;not null"`
	IsVerified       bool                        `gorm:"column:is_verified;not null;default:false"`
	IsDefault        bool                        `gorm:"column:is_default;not null;default:false"`
	CreatedAt        time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *PayoutDestination) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}

// Payable reports whether the destination may receive a transfer.
func (d *PayoutDestination) Payable() bool {
	return d.IsEnabled && d.IsVerified
}

// CartItem is a buyer's pending cart line; paid lines are cleared.
type CartItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID   uuid.UUID `gorm:"column:buyer_id;type:uuid;not null"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int       `gorm:"column:quantity;not null;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}
