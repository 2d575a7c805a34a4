package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	"github.com/angelmondragon/digimart-backend/pkg/pagination"
)

// ErrNotFound is returned when no order matches the lookup.
var ErrNotFound = errors.New("order not found")

// Guard narrows a conditional update to rows still in the expected state.
// Empty fields are not checked.
type Guard struct {
	PaymentStatus  []enums.PaymentStatus
	OrderStatus    []enums.OrderStatus
	BuyerConfirmed *bool
	Delivered      *bool
	// RefundOpen matches only orders without a pending or succeeded refund.
	RefundOpen bool
}

// Repository persists orders and performs compare-and-set updates on their status axes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByChargeReference(ctx context.Context, chargeRef string) (*models.Order, error)
	FindLiveByFingerprint(ctx context.Context, buyerID uuid.UUID, since time.Time) ([]models.Order, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListPendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	ListPendingRefunds(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Order, error)
	ListDuplicateFingerprintKeys(ctx context.Context, limit int) ([]string, error)
	ListByFingerprintKey(ctx context.Context, key string) ([]models.Order, error)

	UpdateGuarded(ctx context.Context, id uuid.UUID, guard Guard, updates map[string]any) error
	UpdatePaymentIfPending(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateIfOrderStatusIn(ctx context.Context, id uuid.UUID, allowed []enums.OrderStatus, updates map[string]any) error
	UpdateRefund(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateGroupDelivery(ctx context.Context, groupID uuid.UUID, deliveredAt time.Time, payload map[string]any) error
	MarkDeliveredIfComplete(ctx context.Context, orderID uuid.UUID, deliveredAt time.Time) (bool, error)
	ReleaseGroupsForPayout(ctx context.Context, orderID uuid.UUID) error
	UpdatePayoutIfStatusIn(ctx context.Context, groupID uuid.UUID, allowed []enums.PayoutStatus, expectedPaidOut int64, status enums.PayoutStatus, paidOut int64) error
	SyncPayoutRollup(ctx context.Context, orderID uuid.UUID) error
	DeleteUnpaid(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the order with its shop groups and line items.
func (r *repository) Create(ctx context.Context, order *models.Order) error {
	if order == nil {
		return fmt.Errorf("order required")
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.withDetail(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (r *repository) FindByChargeReference(ctx context.Context, chargeRef string) (*models.Order, error) {
	if chargeRef == "" {
		return nil, ErrNotFound
	}
	var order models.Order
	err := r.withDetail(ctx).Where("charge_reference = ?", chargeRef).First(&order).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// FindLiveByFingerprint returns the buyer's cart-origin orders that are still awaiting
// payment, not cancelled, and created at or after since. Set equality is left to the caller.
func (r *repository) FindLiveByFingerprint(ctx context.Context, buyerID uuid.UUID, since time.Time) ([]models.Order, error) {
	var rows []models.Order
	err := r.withDetail(ctx).
		Where("buyer_id = ?", buyerID).
		Where("payment_status = ?", enums.PaymentStatusPending).
		Where("order_status <> ?", enums.OrderStatusCancelled).
		Where("fingerprint_key IS NOT NULL").
		Where("created_at >= ?", since.UTC()).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	query := r.withDetail(ctx).Where("buyer_id = ?", buyerID)
	return r.page(query, params)
}

func (r *repository) ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*OrderList, error) {
	groups := r.db.WithContext(ctx).Model(&models.OrderShopGroup{}).Select("order_id").Where("shop_id = ?", shopID)
	query := r.withDetail(ctx).Where("id IN (?)", groups)
	return r.page(query, params)
}

func (r *repository) page(query *gorm.DB, params pagination.Params) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	var rows []models.Order
	if err := pagination.Apply(query, cursor, params.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	rows, next := pagination.Trim(rows, params.Limit, orderCursor)
	list := &OrderList{Orders: rows}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list, nil
}

func orderCursor(o models.Order) pagination.Cursor {
	return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}

// ListPendingPayments returns pending orders with a charge at the gateway or a charge
// attempt of unknown outcome, oldest first.
func (r *repository) ListPendingPayments(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_status = ?", enums.PaymentStatusPending).
		Where("order_status <> ?", enums.OrderStatusCancelled).
		Where("(charge_reference IS NOT NULL OR last_payment_error IS NOT NULL)").
		Where("created_at < ?", createdBefore.UTC()).
		Order("created_at ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&rows).Error
	return rows, err
}

// ListPendingRefunds returns cancelled orders whose refund outcome is not yet terminal.
func (r *repository) ListPendingRefunds(ctx context.Context, updatedBefore time.Time, limit int) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("refund_status = ?", enums.RefundStatusPending).
		Where("updated_at < ?", updatedBefore.UTC()).
		Order("updated_at ASC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&rows).Error
	return rows, err
}

// ListDuplicateFingerprintKeys finds idempotency keys shared by more than one unpaid order.
func (r *repository) ListDuplicateFingerprintKeys(ctx context.Context, limit int) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("fingerprint_key").
		Where("fingerprint_key IS NOT NULL").
		Where("payment_status <> ?", enums.PaymentStatusCompleted).
		Group("fingerprint_key").
		Having("COUNT(*) > 1").
		Order("fingerprint_key").
		Limit(pagination.NormalizeLimit(limit)).
		Pluck("fingerprint_key", &keys).Error
	return keys, err
}

// ListByFingerprintKey returns every order sharing key, newest first.
func (r *repository) ListByFingerprintKey(ctx context.Context, key string) ([]models.Order, error) {
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("fingerprint_key = ?", key).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// UpdateGuarded applies updates only while the row still satisfies guard. A miss
// returns db.ErrStaleWrite.
func (r *repository) UpdateGuarded(ctx context.Context, id uuid.UUID, guard Guard, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id)
	if len(guard.PaymentStatus) > 0 {
		query = query.Where("payment_status IN ?", guard.PaymentStatus)
	}
	if len(guard.OrderStatus) > 0 {
		query = query.Where("order_status IN ?", guard.OrderStatus)
	}
	if guard.BuyerConfirmed != nil {
		query = query.Where("buyer_confirmed = ?", *guard.BuyerConfirmed)
	}
	if guard.Delivered != nil {
		if *guard.Delivered {
			query = query.Where("delivered_at IS NOT NULL")
		} else {
			query = query.Where("delivered_at IS NULL")
		}
	}
	if guard.RefundOpen {
		query = query.Where("(refund_status IS NULL OR refund_status = ?)", enums.RefundStatusFailed)
	}
	return db.RequireAffected(query.Updates(updates))
}

// UpdatePaymentIfPending is the compare-and-set gate for payment transitions.
func (r *repository) UpdatePaymentIfPending(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.UpdateGuarded(ctx, id, Guard{PaymentStatus: []enums.PaymentStatus{enums.PaymentStatusPending}}, updates)
}

func (r *repository) UpdateIfOrderStatusIn(ctx context.Context, id uuid.UUID, allowed []enums.OrderStatus, updates map[string]any) error {
	return r.UpdateGuarded(ctx, id, Guard{OrderStatus: allowed}, updates)
}

// UpdateRefund writes refund fields. Refund data stays writable after cancellation.
func (r *repository) UpdateRefund(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	for column := range updates {
		if !refundColumns[column] {
			return fmt.Errorf("column %q is not a refund field", column)
		}
	}
	result := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	return db.RequireAffected(result)
}

var refundColumns = map[string]bool{
	"refund_reference": true,
	"refunded_amount":  true,
	"refund_status":    true,
	"refund_error":     true,
}

// UpdateGroupDelivery stores the fulfillment payload. The first delivery time is kept on resends.
func (r *repository) UpdateGroupDelivery(ctx context.Context, groupID uuid.UUID, deliveredAt time.Time, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode fulfillment: %w", err)
	}
	result := r.db.WithContext(ctx).
		Model(&models.OrderShopGroup{}).
		Where("id = ?", groupID).
		Updates(map[string]any{
			"delivered_at": gorm.Expr("COALESCE(delivered_at, ?)", deliveredAt.UTC()),
			"fulfillment":  string(raw),
		})
	return db.RequireAffected(result)
}

// MarkDeliveredIfComplete sets the order's delivered_at once no shop group is left
// undelivered. It reports whether the order is now fully delivered.
func (r *repository) MarkDeliveredIfComplete(ctx context.Context, orderID uuid.UUID, deliveredAt time.Time) (bool, error) {
	pending := r.db.WithContext(ctx).
		Model(&models.OrderShopGroup{}).
		Select("1").
		Where("order_id = ? AND delivered_at IS NULL", orderID)
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Where("NOT EXISTS (?)", pending).
		Update("delivered_at", gorm.Expr("COALESCE(delivered_at, ?)", deliveredAt.UTC()))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseGroupsForPayout moves every untouched shop group of the order from none to ready.
func (r *repository) ReleaseGroupsForPayout(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderShopGroup{}).
		Where("order_id = ? AND payout_status = ?", orderID, enums.PayoutStatusNone).
		Update("payout_status", enums.PayoutStatusReady).Error
}

// UpdatePayoutIfStatusIn is the compare-and-set gate on a shop group's payout axis,
// guarded on both the previous status and the previous paid-out amount.
func (r *repository) UpdatePayoutIfStatusIn(ctx context.Context, groupID uuid.UUID, allowed []enums.PayoutStatus, expectedPaidOut int64, status enums.PayoutStatus, paidOut int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderShopGroup{}).
		Where("id = ?", groupID).
		Where("payout_status IN ?", allowed).
		Where("paid_out_amount = ?", expectedPaidOut).
		Updates(map[string]any{
			"payout_status":   status,
			"paid_out_amount": paidOut,
		})
	return db.RequireAffected(result)
}

// SyncPayoutRollup recomputes the order-level payout axis from its shop groups.
func (r *repository) SyncPayoutRollup(ctx context.Context, orderID uuid.UUID) error {
	var groups []models.OrderShopGroup
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&groups).Error; err != nil {
		return err
	}
	if len(groups) == 0 {
		return ErrNotFound
	}
	status, paidOut := RollupPayout(groups)
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"payout_status":   status,
			"paid_out_amount": paidOut,
		})
	return db.RequireAffected(result)
}

// DeleteUnpaid removes an order and its children unless its payment completed.
func (r *repository) DeleteUnpaid(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND payment_status <> ?", id, enums.PaymentStatusCompleted).
		Delete(&models.Order{})
	if err := db.RequireAffected(result); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", id).Delete(&models.OrderLineItem{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("order_id = ?", id).Delete(&models.OrderShopGroup{}).Error
}

func (r *repository) withDetail(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("ShopGroups", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC").Order("id ASC") }).
		Preload("ShopGroups.Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at ASC").Order("id ASC") })
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
