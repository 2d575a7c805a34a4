package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
)

// Repository is append-only: ledger rows are never updated or deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Append(ctx context.Context, event *models.LedgerEvent) error
	ForOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error)
	ForPayout(ctx context.Context, payoutID uuid.UUID) ([]models.LedgerEvent, error)
}

type gormLedger struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return gormLedger{db: db}
}

func (g gormLedger) WithTx(tx *gorm.DB) Repository {
	if tx != nil {
		g.db = tx
	}
	return g
}

func (g gormLedger) Append(ctx context.Context, event *models.LedgerEvent) error {
	return g.db.WithContext(ctx).Create(event).Error
}

func (g gormLedger) ForOrder(ctx context.Context, orderID uuid.UUID) ([]models.LedgerEvent, error) {
	return g.chronological(ctx, "order_id", orderID)
}

func (g gormLedger) ForPayout(ctx context.Context, payoutID uuid.UUID) ([]models.LedgerEvent, error) {
	return g.chronological(ctx, "payout_id", payoutID)
}

// chronological returns every row whose column equals id, oldest first. Ties on
// created_at fall back to id so replays are stable.
func (g gormLedger) chronological(ctx context.Context, column string, id uuid.UUID) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	err := g.db.WithContext(ctx).
		Where(map[string]any{column: id}).
		Order("created_at").
		Order("id").
		Find(&events).Error
	return events, err
}
