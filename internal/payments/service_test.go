package payments

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/internal/gateway"
	"github.com/angelmondragon/digimart-backend/internal/ledger"
	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/internal/refunds"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/db"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox"
)

type stubTx struct{}

func (stubTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

// memOrders keeps a single order and enforces guards the way the SQL CAS does.
type memOrders struct {
	orders.Repository
	order *models.Order
}

func (m *memOrders) WithTx(*gorm.DB) orders.Repository { return m }

func (m *memOrders) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if m.order == nil || m.order.ID != id {
		return nil, orders.ErrNotFound
	}
	clone := *m.order
	return &clone, nil
}

func (m *memOrders) FindByChargeReference(ctx context.Context, ref string) (*models.Order, error) {
	if m.order == nil || m.order.ChargeReference == nil || *m.order.ChargeReference != ref {
		return nil, orders.ErrNotFound
	}
	return m.FindByID(ctx, m.order.ID)
}

func (m *memOrders) UpdateGuarded(_ context.Context, _ uuid.UUID, guard orders.Guard, updates map[string]any) error {
	if !containsStatus(guard.PaymentStatus, m.order.PaymentStatus) || !containsStatus(guard.OrderStatus, m.order.OrderStatus) {
		return db.ErrStaleWrite
	}
	for key, value := range updates {
		switch key {
		case "payment_status":
			m.order.PaymentStatus = value.(enums.PaymentStatus)
		case "order_status":
			m.order.OrderStatus = value.(enums.OrderStatus)
		case "paid_at":
			at := value.(time.Time)
			m.order.PaidAt = &at
		case "cancelled_at":
			at := value.(time.Time)
			m.order.CancelledAt = &at
		case "cancel_reason":
			reason := value.(string)
			m.order.CancelReason = &reason
		case "charge_reference":
			ref := value.(string)
			m.order.ChargeReference = &ref
		case "last_payment_error":
			if value == nil {
				m.order.LastPaymentError = nil
			} else {
				msg := value.(string)
				m.order.LastPaymentError = &msg
			}
		}
	}
	return nil
}

func containsStatus[T comparable](allowed []T, value T) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if candidate == value {
			return true
		}
	}
	return false
}

type stubCharges struct {
	charge  *gateway.Charge
	err     error
	found   *gateway.Charge
	findErr error
	lookups []uuid.UUID
}

func (s *stubCharges) CreateCharge(context.Context, gateway.ChargeRequest) (*gateway.Charge, error) {
	return nil, errors.New("not used")
}

func (s *stubCharges) GetCharge(context.Context, string) (*gateway.Charge, error) {
	return s.charge, s.err
}

func (s *stubCharges) FindCharge(_ context.Context, orderID uuid.UUID, _ time.Time) (*gateway.Charge, error) {
	s.lookups = append(s.lookups, orderID)
	return s.found, s.findErr
}

type stubStock struct{ sales, clears int }

func (s *stubStock) ApplySale(context.Context, *models.Order) int {
	s.sales++
	return 1
}

func (s *stubStock) ClearCart(context.Context, *models.Order) { s.clears++ }

type stubRefunder struct{ calls int }

func (s *stubRefunder) Refund(context.Context, *models.Order, string) (refunds.Outcome, error) {
	s.calls++
	return refunds.Outcome{Status: enums.RefundStatusSucceeded}, nil
}

type stubOutbox struct{ events []outbox.DomainEvent }

func (s *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubAudit struct{ entries []ledger.Entry }

func (s *stubAudit) Audit(_ context.Context, entry ledger.Entry) {
	s.entries = append(s.entries, entry)
}

type fixture struct {
	svc      Service
	orders   *memOrders
	charges  *stubCharges
	stock    *stubStock
	refunder *stubRefunder
	outbox   *stubOutbox
	audit    *stubAudit
}

func newFixture(t *testing.T, order *models.Order) *fixture {
	t.Helper()
	f := &fixture{
		orders:   &memOrders{order: order},
		charges:  &stubCharges{},
		stock:    &stubStock{},
		refunder: &stubRefunder{},
		outbox:   &stubOutbox{},
		audit:    &stubAudit{},
	}
	svc, err := NewService(Deps{
		Tx:       stubTx{},
		Orders:   f.orders,
		Charges:  f.charges,
		Stock:    f.stock,
		Refunder: f.refunder,
		Outbox:   f.outbox,
		Audit:    f.audit,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestHandleChargeUpdateIsIdempotent(t *testing.T) {
	f := newFixture(t, pendingOrder())
	charge := gateway.Charge{Reference: "pay_1", Status: enums.ChargeStatusSuccessful, Paid: true}
	ctx := context.Background()

	first, err := f.svc.HandleChargeUpdate(ctx, charge)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	assert.Equal(t, enums.PaymentStatusCompleted, first.Order.PaymentStatus)
	assert.NotNil(t, first.Order.PaidAt)

	second, err := f.svc.HandleChargeUpdate(ctx, charge)
	require.NoError(t, err)
	assert.False(t, second.Changed, "replay must not report a change")
	assert.Equal(t, 1, f.stock.sales)
	assert.Equal(t, 1, f.stock.clears)
	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, enums.EventPaymentCompleted, f.outbox.events[0].EventType)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, enums.LedgerEventPaymentCompleted, f.audit.entries[0].Type)
}

func TestHandleChargeUpdateUnknownCharge(t *testing.T) {
	f := newFixture(t, pendingOrder())
	_, err := f.svc.HandleChargeUpdate(context.Background(), gateway.Charge{Reference: "pay_other", Status: enums.ChargeStatusFailed})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestExpiredChargeCancelsOrder(t *testing.T) {
	f := newFixture(t, pendingOrder())
	result, err := f.svc.HandleChargeUpdate(context.Background(), gateway.Charge{Reference: "pay_1", Status: enums.ChargeStatusExpired})
	require.NoError(t, err)

	order := result.Order
	assert.Equal(t, enums.PaymentStatusFailed, order.PaymentStatus)
	assert.Equal(t, enums.OrderStatusCancelled, order.OrderStatus)
	assert.NotNil(t, order.CancelledAt)
	require.Len(t, f.outbox.events, 2)
	assert.Equal(t, enums.EventOrderCancelled, f.outbox.events[1].EventType)
	assert.Zero(t, f.stock.sales, "expired charges move no stock")
	assert.Zero(t, f.refunder.calls, "expired charges move no money")
}

func TestSyncPaymentResyncsFailedOrder(t *testing.T) {
	order := pendingOrder()
	order.PaymentStatus = enums.PaymentStatusFailed
	msg := "charge failed at gateway"
	order.LastPaymentError = &msg
	f := newFixture(t, order)
	f.charges.charge = &gateway.Charge{Reference: "pay_1", Status: enums.ChargeStatusPending}
	buyer := auth.Actor{UserID: order.BuyerID, Role: enums.UserRoleBuyer}

	result, err := f.svc.SyncPayment(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, enums.PaymentStatusPending, result.Order.PaymentStatus)
	assert.Nil(t, result.Order.LastPaymentError)

	f.charges.charge = &gateway.Charge{Reference: "pay_1", Status: enums.ChargeStatusSuccessful, Paid: true}
	result, err = f.svc.SyncPayment(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, result.Order.PaymentStatus)
}

func TestSyncPaymentErrors(t *testing.T) {
	order := pendingOrder()
	f := newFixture(t, order)
	ctx := context.Background()

	_, err := f.svc.SyncPayment(ctx, auth.Actor{UserID: uuid.New(), Role: enums.UserRoleBuyer}, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "stranger got %v", err)

	buyer := auth.Actor{UserID: order.BuyerID, Role: enums.UserRoleBuyer}
	f.charges.err = errors.New("connection reset")
	_, err = f.svc.SyncPayment(ctx, buyer, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)

	f.orders.order.ChargeReference = nil
	f.charges.findErr = errors.New("connection reset")
	_, err = f.svc.SyncPayment(ctx, buyer, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "lookup failure got %v", err)

	f.orders.order.PaymentStatus = enums.PaymentStatusFailed
	_, err = f.svc.SyncPayment(ctx, buyer, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "failed order without charge got %v", err)
}

// unresolvedOrder is a pending order whose checkout never learned the charge outcome.
func unresolvedOrder(age time.Duration) *models.Order {
	order := pendingOrder()
	order.ChargeReference = nil
	order.CreatedAt = time.Now().UTC().Add(-age)
	msg := "context deadline exceeded"
	order.LastPaymentError = &msg
	return order
}

func TestSyncOrderMatchesChargeByOrderReference(t *testing.T) {
	order := unresolvedOrder(5 * time.Minute)
	f := newFixture(t, order)
	f.charges.found = &gateway.Charge{Reference: "pay_late", Status: enums.ChargeStatusSuccessful, Paid: true}

	result, err := f.svc.SyncOrder(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{order.ID}, f.charges.lookups)
	assert.True(t, result.Changed)
	require.NotNil(t, result.Order.ChargeReference)
	assert.Equal(t, "pay_late", *result.Order.ChargeReference)
	assert.Equal(t, enums.PaymentStatusCompleted, result.Order.PaymentStatus)
	assert.Nil(t, result.Order.LastPaymentError)
	assert.Equal(t, 1, f.stock.sales)

	replay, err := f.svc.HandleChargeUpdate(context.Background(), *f.charges.found)
	require.NoError(t, err)
	assert.False(t, replay.Changed, "webhook for the matched charge is a replay")
}

func TestSyncOrderKeepsUnmatchedChargePendingUntilTTL(t *testing.T) {
	order := unresolvedOrder(10 * time.Minute)
	f := newFixture(t, order)

	result, err := f.svc.SyncOrder(context.Background(), order)
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, enums.PaymentStatusPending, f.orders.order.PaymentStatus)
	assert.Empty(t, f.outbox.events)

	buyer := auth.Actor{UserID: order.BuyerID, Role: enums.UserRoleBuyer}
	f.orders.order.CreatedAt = time.Now().UTC().Add(-2 * unresolvedChargeTTL)
	result, err = f.svc.SyncPayment(context.Background(), buyer, order.ID)
	require.NoError(t, err)
	assert.False(t, result.Changed, "only the background sync gives up on a charge")
}

func TestSyncOrderFailsUnmatchedChargeAfterTTL(t *testing.T) {
	order := unresolvedOrder(unresolvedChargeTTL + time.Minute)
	f := newFixture(t, order)

	result, err := f.svc.SyncOrder(context.Background(), order)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, enums.PaymentStatusFailed, result.Order.PaymentStatus)
	assert.Nil(t, result.Order.ChargeReference)
	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, enums.EventPaymentFailed, f.outbox.events[0].EventType)
	assert.Zero(t, f.stock.sales)
}

func TestLateCaptureOnCancelledOrderIsRefunded(t *testing.T) {
	order := pendingOrder()
	order.OrderStatus = enums.OrderStatusCancelled
	f := newFixture(t, order)

	result, err := f.svc.HandleChargeUpdate(context.Background(), gateway.Charge{Reference: "pay_1", Status: enums.ChargeStatusSuccessful, Paid: true})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, 1, f.refunder.calls)
	assert.Equal(t, enums.PaymentStatusPending, f.orders.order.PaymentStatus, "cancelled order must not be marked paid")
	assert.Empty(t, f.outbox.events)
}
