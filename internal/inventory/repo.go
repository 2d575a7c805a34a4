package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
)

// Repository adjusts product stock and sold counters and clears paid cart lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	DecrementForSale(ctx context.Context, productID uuid.UUID, quantity int) error
	RestoreForCancel(ctx context.Context, productID uuid.UUID, quantity int) error
	DeleteCartItems(ctx context.Context, buyerID uuid.UUID, cartItemIDs []uuid.UUID) (int64, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindCartItems(ctx context.Context, buyerID uuid.UUID, ids []uuid.UUID) ([]models.CartItem, error)
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

// DecrementForSale lowers stock by quantity, flooring at zero, and raises the sold
// counter. Products carrying the unlimited sentinel keep their stock value.
func (r *repository) DecrementForSale(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock": gorm.Expr(
				"CASE WHEN stock = ? THEN stock WHEN stock < ? THEN 0 ELSE stock - ? END",
				models.UnlimitedStock, quantity, quantity,
			),
			"sold_count": gorm.Expr("sold_count + ?", quantity),
		})
	return db.RequireAffected(result)
}

// RestoreForCancel is the inverse of DecrementForSale. The sold counter never goes negative.
func (r *repository) RestoreForCancel(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be positive")
	}
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock": gorm.Expr(
				"CASE WHEN stock = ? THEN stock ELSE stock + ? END",
				models.UnlimitedStock, quantity,
			),
			"sold_count": gorm.Expr(
				"CASE WHEN sold_count < ? THEN 0 ELSE sold_count - ? END",
				quantity, quantity,
			),
		})
	return db.RequireAffected(result)
}

// DeleteCartItems removes the buyer's cart lines with the given ids. Lines belonging to
// another buyer are left alone.
func (r *repository) DeleteCartItems(ctx context.Context, buyerID uuid.UUID, cartItemIDs []uuid.UUID) (int64, error) {
	if len(cartItemIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("buyer_id = ? AND id IN ?", buyerID, cartItemIDs).
		Delete(&models.CartItem{})
	return result.RowsAffected, result.Error
}

func (r *repository) FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindCartItems returns the buyer's cart lines among ids, oldest first.
func (r *repository) FindCartItems(ctx context.Context, buyerID uuid.UUID, ids []uuid.UUID) ([]models.CartItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.CartItem
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND id IN ?", buyerID, ids).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
