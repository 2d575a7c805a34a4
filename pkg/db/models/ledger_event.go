package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// LedgerEvent records an immutable money movement for an order or payout.
type LedgerEvent struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   *uuid.UUID            `gorm:"column:order_id;type:uuid"`
	PayoutID  *uuid.UUID            `gorm:"column:payout_id;type:uuid"`
	ShopID    *uuid.UUID            `gorm:"column:shop_id;type:uuid"`
	ActorID   *uuid.UUID            `gorm:"column:actor_id;type:uuid"`
	Type      enums.LedgerEventType `gorm:"column:type;type:ledger_event_type_enum;not null"`
	Amount    int64                 `gorm:"column:amount;not null"`
	Reference *string               `gorm:"column:reference"`
	Metadata  map[string]any        `gorm:"column:metadata;type:jsonb;serializer:json"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *LedgerEvent) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}
