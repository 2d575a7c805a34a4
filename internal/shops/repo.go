package shops

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
)

var (
	ErrShopNotFound        = errors.New("shop not found")
	ErrDestinationNotFound = errors.New("payout destination not found")
)

// Repository reads shops and their payout destinations and bumps sales counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	ListDestinations(ctx context.Context, shopID uuid.UUID) ([]models.PayoutDestination, error)
	FindDestination(ctx context.Context, shopID, destinationID uuid.UUID) (*models.PayoutDestination, error)
	ShopsWithoutPayableDestination(ctx context.Context, shopIDs []uuid.UUID) ([]uuid.UUID, error)
	IncrementSales(ctx context.Context, shopID uuid.UUID, gross int64) error
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

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&shop).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, err
	}
	return &shop, nil
}

// ListDestinations returns the shop's destinations, default first.
func (r *repository) ListDestinations(ctx context.Context, shopID uuid.UUID) ([]models.PayoutDestination, error) {
	var rows []models.PayoutDestination
	err := r.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("is_default DESC").
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindDestination(ctx context.Context, shopID, destinationID uuid.UUID) (*models.PayoutDestination, error) {
	var dest models.PayoutDestination
	err := r.db.WithContext(ctx).Where("id = ? AND shop_id = ?", destinationID, shopID).First(&dest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDestinationNotFound
		}
		return nil, err
	}
	return &dest, nil
}

// ShopsWithoutPayableDestination returns the subset of shopIDs lacking an enabled,
// verified destination, in input order.
func (r *repository) ShopsWithoutPayableDestination(ctx context.Context, shopIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(shopIDs) == 0 {
		return nil, nil
	}
	var payable []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.PayoutDestination{}).
		Distinct("shop_id").
		Where("shop_id IN ?", shopIDs).
		Where("is_enabled = ? AND is_verified = ?", true, true).
		Pluck("shop_id", &payable).Error
	if err != nil {
		return nil, err
	}

	ok := make(map[uuid.UUID]bool, len(payable))
	for _, id := range payable {
		ok[id] = true
	}
	var missing []uuid.UUID
	for _, id := range shopIDs {
		if !ok[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *repository) IncrementSales(ctx context.Context, shopID uuid.UUID, gross int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Shop{}).
		Where("id = ?", shopID).
		Updates(map[string]any{
			"total_sales":  gorm.Expr("total_sales + ?", gross),
			"total_orders": gorm.Expr("total_orders + 1"),
		})
	return db.RequireAffected(result)
}
