package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	"github.com/angelmondragon/digimart-backend/pkg/pagination"
)

// Recipient addresses a buyer or a shop inbox.
type Recipient struct {
	Type enums.NotificationRecipient
	ID   uuid.UUID
}

// Page selects a slice of one inbox.
type Page struct {
	Inbox      Recipient
	Limit      int
	After      *pagination.Cursor
	UnreadOnly bool
}

// Repository persists inbox rows. Every read and write except DeleteReadBefore is
// scoped to a single inbox.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, page Page) ([]models.Notification, *pagination.Cursor, error)
	// MarkRead stamps read_at on an unread row and reports whether the row exists
	// in the inbox at all. Marking an already read row is not an error.
	MarkRead(ctx context.Context, inbox Recipient, id uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, inbox Recipient, at time.Time) (int64, error)
	CountUnread(ctx context.Context, inbox Recipient) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type store struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &store{db: db}
}

func (s *store) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return s
	}
	return &store{db: tx}
}

func (s *store) Create(ctx context.Context, notification *models.Notification) error {
	return s.db.WithContext(ctx).Create(notification).Error
}

func (s *store) scoped(ctx context.Context, inbox Recipient) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("recipient_type = ?", inbox.Type).
		Where("recipient_id = ?", inbox.ID)
}

func (s *store) unread(ctx context.Context, inbox Recipient) *gorm.DB {
	return s.scoped(ctx, inbox).Where("read_at IS NULL")
}

func (s *store) List(ctx context.Context, page Page) ([]models.Notification, *pagination.Cursor, error) {
	query := s.scoped(ctx, page.Inbox)
	if page.UnreadOnly {
		query = s.unread(ctx, page.Inbox)
	}
	var rows []models.Notification
	if err := pagination.Apply(query, page.After, page.Limit).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, page.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return rows, next, nil
}

func (s *store) MarkRead(ctx context.Context, inbox Recipient, id uuid.UUID, at time.Time) (bool, error) {
	res := s.unread(ctx, inbox).Where("id = ?", id).UpdateColumn("read_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var n int64
	err := s.scoped(ctx, inbox).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (s *store) MarkAllRead(ctx context.Context, inbox Recipient, at time.Time) (int64, error) {
	res := s.unread(ctx, inbox).UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}

func (s *store) CountUnread(ctx context.Context, inbox Recipient) (int64, error) {
	var n int64
	err := s.unread(ctx, inbox).Count(&n).Error
	return n, err
}

// DeleteReadBefore removes read notifications created before cutoff, across every inbox.
func (s *store) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("read_at IS NOT NULL").
		Where("created_at < ?", cutoff.UTC()).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
