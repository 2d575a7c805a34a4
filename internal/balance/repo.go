package balance

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// Repository reads balance entries with the paid, confirmed and cancelled predicates
// evaluated in SQL.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Confirmed(ctx context.Context, shopID uuid.UUID) ([]Entry, error)
	Pending(ctx context.Context, shopID uuid.UUID) ([]Entry, error)
	Eligible(ctx context.Context, shopID uuid.UUID) ([]Entry, error)
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

func (r *repository) Confirmed(ctx context.Context, shopID uuid.UUID) ([]Entry, error) {
	var rows []Entry
	err := r.entries(ctx, shopID, "o.buyer_confirmed_at").
		Where("o.buyer_confirmed = ?", true).
		Order("o.buyer_confirmed_at ASC").
		Order("g.id ASC").
		Scan(&rows).Error
	return rows, err
}

// Pending returns delivered groups whose buyer has not confirmed yet.
func (r *repository) Pending(ctx context.Context, shopID uuid.UUID) ([]Entry, error) {
	var rows []Entry
	err := r.entries(ctx, shopID, "o.paid_at").
		Where("o.buyer_confirmed = ?", false).
		Where("g.delivered_at IS NOT NULL").
		Order("o.paid_at ASC").
		Order("g.id ASC").
		Scan(&rows).Error
	return rows, err
}

// Eligible returns confirmed entries that still hold withdrawable funds, oldest
// confirmation first. Payout allocation consumes them in this order.
func (r *repository) Eligible(ctx context.Context, shopID uuid.UUID) ([]Entry, error) {
	var rows []Entry
	err := r.entries(ctx, shopID, "o.buyer_confirmed_at").
		Where("o.buyer_confirmed = ?", true).
		Where("g.payout_status IN ?", []enums.PayoutStatus{enums.PayoutStatusReady, enums.PayoutStatusPartial}).
		Where("g.paid_out_amount < g.seller_net_amount").
		Order("o.buyer_confirmed_at ASC").
		Order("g.id ASC").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) entries(ctx context.Context, shopID uuid.UUID, atColumn string) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("order_shop_groups AS g").
		Select("g.order_id AS order_id, g.id AS shop_group_id, g.seller_net_amount AS seller_net, "+
			"g.paid_out_amount AS paid_out, g.payout_status AS payout_status, "+atColumn+" AS at").
		Joins("JOIN orders AS o ON o.id = g.order_id").
		Where("g.shop_id = ?", shopID).
		Where("o.payment_status = ?", enums.PaymentStatusCompleted).
		Where("o.order_status <> ?", enums.OrderStatusCancelled)
}
