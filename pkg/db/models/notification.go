package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// Notification stores in-app notifications for a buyer or a shop.
type Notification struct {
	ID            uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	RecipientType enums.NotificationRecipient `gorm:"type:notification_recipient;not null"`
	RecipientID   uuid.UUID                   `gorm:"type:uuid;not null"`
	Type          enums.NotificationType      `gorm:"type:notification_type;not null"`
	Title         string                      `gorm:"type:text;not null"`
	Message       string                      `gorm:"type:text;not null"`
	Link          *string                     `gorm:"type:text"`
	ReadAt        *time.Time                  `gorm:"type:timestamptz"`
	CreatedAt     time.Time                   `gorm:"type:timestamptz;autoCreateTime"`
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	assignID(&n.ID)
	return nil
}
