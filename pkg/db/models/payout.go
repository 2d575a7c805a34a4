package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/digimart-backend/pkg/db/types"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// Payout is one seller withdrawal. It is written before the transfer and never deleted.
type Payout struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	ShopID            uuid.UUID                `gorm:"column:shop_id;type:uuid;not null"`
	DestinationID     uuid.UUID                `gorm:"column:destination_id;type:uuid;not null"`
	Amount            int64                    `gorm:"column:amount;not null"`
	Currency          enums.Currency           `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status            enums.PayoutRecordStatus `gorm:"column:status;type:payout_record_status;not null;default:'processing'"`
	OrderIDs          dbtypes.UUIDArray        `gorm:"column:order_ids;type:uuid[]"`
	Allocations       []PayoutAllocation       `gorm:"column:allocations;type:jsonb;serializer:json"`
	TransferReference *string                  `gorm:"column:transfer_reference"`
	FailureReason     *string                  `gorm:"column:failure_reason"`
	CompletedAt       *time.Time               `gorm:"column:completed_at"`
	FailedAt          *time.Time               `gorm:"column:failed_at"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payout) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// PayoutAllocation is the share of a payout taken from one shop group. PrevPaidOut
// is the group's paid-out amount when the payout was planned and guards the write-back.
type PayoutAllocation struct {
	OrderID     uuid.UUID `json:"order_id"`
	ShopGroupID uuid.UUID `json:"shop_group_id"`
	Amount      int64     `json:"amount"`
	PrevPaidOut int64     `json:"prev_paid_out"`
	SellerNet   int64     `json:"seller_net"`
}
