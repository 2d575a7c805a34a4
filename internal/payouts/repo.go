package payouts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	"github.com/angelmondragon/digimart-backend/pkg/pagination"
)

var ErrNotFound = errors.New("payout not found")

type PayoutList struct {
	Payouts    []models.Payout `json:"payouts"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

// Repository persists payouts. Status changes go through UpdateIfStatus.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.Payout) error
	FindForShop(ctx context.Context, shopID, payoutID uuid.UUID) (*models.Payout, error)
	ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*PayoutList, error)
	ListProcessing(ctx context.Context, createdBefore time.Time, limit int) ([]models.Payout, error)
	InFlightForShop(ctx context.Context, shopID uuid.UUID) (*models.Payout, error)
	UpdateIfStatus(ctx context.Context, id uuid.UUID, from enums.PayoutRecordStatus, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *repository) FindForShop(ctx context.Context, shopID, payoutID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).Where("id = ? AND shop_id = ?", payoutID, shopID).First(&payout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*PayoutList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	var rows []models.Payout
	query := r.db.WithContext(ctx).Where("shop_id = ?", shopID)
	if err := pagination.Apply(query, cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	rows, next := pagination.Trim(rows, params.Limit, func(p models.Payout) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	list := &PayoutList{Payouts: rows}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list, nil
}

// ListProcessing returns payouts still awaiting a transfer outcome, oldest first.
func (r *repository) ListProcessing(ctx context.Context, createdBefore time.Time, limit int) ([]models.Payout, error) {
	var rows []models.Payout
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.PayoutRecordProcessing).
		Where("created_at < ?", createdBefore.UTC()).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// InFlightForShop returns the shop's oldest processing payout, or ErrNotFound.
func (r *repository) InFlightForShop(ctx context.Context, shopID uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND status = ?", shopID, enums.PayoutRecordProcessing).
		Order("created_at ASC").
		First(&payout).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) UpdateIfStatus(ctx context.Context, id uuid.UUID, from enums.PayoutRecordStatus, updates map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return db.RequireAffected(result)
}
