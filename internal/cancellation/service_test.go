package cancellation

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/internal/fulfillment"
	"github.com/angelmondragon/digimart-backend/internal/gateway"
	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/internal/refunds"
	"github.com/angelmondragon/digimart-backend/pkg/auth"
	"github.com/angelmondragon/digimart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

type sqliteTx struct{ conn *gorm.DB }

func (s sqliteTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.conn.WithContext(ctx).Transaction(fn)
}

type stubRefunds struct {
	status enums.RefundStatus
	err    error
	calls  int
	during func()
}

func (s *stubRefunds) CreateRefund(_ context.Context, req gateway.RefundRequest) (*gateway.Refund, error) {
	s.calls++
	if s.during != nil {
		s.during()
	}
	if s.err != nil {
		return nil, s.err
	}
	return &gateway.Refund{Reference: "rf_" + req.OrderID.String()[:8], Status: s.status}, nil
}

func (s *stubRefunds) GetRefund(context.Context, string) (*gateway.Refund, error) {
	return &gateway.Refund{Status: s.status}, nil
}

type stubStock struct{ restored int }

func (s *stubStock) RestoreCancelled(context.Context, *models.Order) int {
	s.restored++
	return 1
}

type stubOutbox struct{ events []outbox.DomainEvent }

func (s *stubOutbox) Emit(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

type fixture struct {
	conn    *gorm.DB
	svc     Service
	repo    orders.Repository
	refunds *stubRefunds
	stock   *stubStock
	outbox  *stubOutbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}})
	f := &fixture{
		conn:    conn,
		repo:    orders.NewRepository(conn),
		refunds: &stubRefunds{status: enums.RefundStatusSucceeded},
		stock:   &stubStock{},
		outbox:  &stubOutbox{},
	}
	tx := sqliteTx{conn: conn}
	issuer, err := refunds.NewIssuer(tx, f.repo, f.refunds, f.outbox, nil, logg, nil)
	require.NoError(t, err)
	svc, err := NewService(Deps{Tx: tx, Orders: f.repo, Refunder: issuer, Stock: f.stock, Outbox: f.outbox, Logger: logg})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) order(t *testing.T, payment enums.PaymentStatus, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := dbtest.Order(uuid.New(), dbtest.Group(uuid.New(), 30, dbtest.Item(uuid.New(), 1000, 1)))
	order.PaymentStatus = payment
	order.OrderStatus = status
	ref := "pay_" + order.ID.String()[:8]
	order.ChargeReference = &ref
	if payment == enums.PaymentStatusCompleted {
		paidAt := time.Now().UTC()
		order.PaidAt = &paidAt
	}
	dbtest.Insert(t, f.conn, order)
	return order
}

func buyerOf(order *models.Order) auth.Actor {
	return auth.Actor{UserID: order.BuyerID, Role: enums.UserRoleBuyer}
}

func TestCancelPaidOrderRefundsAndRestoresStock(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.PaymentStatusCompleted, enums.OrderStatusProcessing)

	cancelled, err := f.svc.Cancel(context.Background(), buyerOf(order), order.ID, "  changed my mind ")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.OrderStatus)
	assert.Equal(t, enums.PaymentStatusCompleted, cancelled.PaymentStatus)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "changed my mind", *cancelled.CancelReason)
	require.NotNil(t, cancelled.CancelledBy)
	assert.Equal(t, order.BuyerID, *cancelled.CancelledBy)
	require.NotNil(t, cancelled.RefundStatus)
	assert.Equal(t, enums.RefundStatusSucceeded, *cancelled.RefundStatus)
	assert.Equal(t, int64(1000), cancelled.RefundedAmount)
	assert.Equal(t, 1, f.stock.restored)

	require.Len(t, f.outbox.events, 2)
	assert.Equal(t, enums.EventRefundRecorded, f.outbox.events[0].EventType)
	assert.Equal(t, enums.EventOrderCancelled, f.outbox.events[1].EventType)
	event := f.outbox.events[1].Data.(payloads.OrderCancelledEvent)
	assert.Equal(t, int64(1000), event.RefundedAmount)

	_, err = f.svc.Cancel(context.Background(), buyerOf(order), order.ID, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "second cancel: %v", err)
	assert.Equal(t, 1, f.refunds.calls)
}

func TestCancelRecordsFailedRefund(t *testing.T) {
	f := newFixture(t)
	f.refunds.err = pkgerrors.New(pkgerrors.CodeGateway, "refund window closed")
	order := f.order(t, enums.PaymentStatusCompleted, enums.OrderStatusPending)
	admin := auth.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	cancelled, err := f.svc.Cancel(context.Background(), admin, order.ID, "fraud")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.OrderStatus)
	require.NotNil(t, cancelled.RefundStatus)
	assert.Equal(t, enums.RefundStatusFailed, *cancelled.RefundStatus)
	require.NotNil(t, cancelled.RefundError)
	assert.Zero(t, cancelled.RefundedAmount)
}

func TestCancelUnpaidOrderSkipsRefund(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.PaymentStatusPending, enums.OrderStatusPending)

	cancelled, err := f.svc.Cancel(context.Background(), buyerOf(order), order.ID, "")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.OrderStatus)
	assert.Nil(t, cancelled.RefundStatus)
	assert.Equal(t, defaultReason, *cancelled.CancelReason)
	assert.Zero(t, f.refunds.calls)
	assert.Zero(t, f.stock.restored)
}

func TestCancelRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	completed := f.order(t, enums.PaymentStatusCompleted, enums.OrderStatusCompleted)
	_, err := f.svc.Cancel(ctx, buyerOf(completed), completed.ID, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	order := f.order(t, enums.PaymentStatusPending, enums.OrderStatusPending)
	_, err = f.svc.Cancel(ctx, auth.Actor{UserID: uuid.New(), Role: enums.UserRoleBuyer}, order.ID, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	shopID := order.ShopGroups[0].ShopID
	_, err = f.svc.Cancel(ctx, auth.Actor{UserID: uuid.New(), Role: enums.UserRoleSeller, ShopID: &shopID}, order.ID, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	long := make([]byte, maxReasonChars+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.svc.Cancel(ctx, buyerOf(order), order.ID, string(long))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Zero(t, f.refunds.calls)
}

type noSales struct{}

func (noSales) IncrementSales(context.Context, uuid.UUID, int64) error { return nil }

func TestCancelHoldsOrderAgainstDeliveryDuringRefund(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, enums.PaymentStatusCompleted, enums.OrderStatusPending)
	shopID := order.ShopGroups[0].ShopID
	seller := auth.Actor{UserID: uuid.New(), Role: enums.UserRoleSeller, ShopID: &shopID}

	delivery, err := fulfillment.NewService(fulfillment.Deps{
		Tx:     sqliteTx{conn: f.conn},
		Orders: f.repo,
		Sales:  noSales{},
		Outbox: f.outbox,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}),
	})
	require.NoError(t, err)

	var deliverErr error
	f.refunds.during = func() {
		_, deliverErr = delivery.Deliver(ctx, seller, order.ID, map[string]any{"license_key": "K-1"})
		// A status move that bypasses the checks must not strand the refund either.
		require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).
			Update("order_status", enums.OrderStatusProcessing).Error)
	}

	cancelled, err := f.svc.Cancel(ctx, buyerOf(order), order.ID, "")
	require.NoError(t, err)
	assert.True(t, pkgerrors.IsCode(deliverErr, pkgerrors.CodeStateConflict), "deliver during refund: %v", deliverErr)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.OrderStatus)
	require.NotNil(t, cancelled.RefundStatus)
	assert.Equal(t, enums.RefundStatusSucceeded, *cancelled.RefundStatus)
	assert.Nil(t, cancelled.DeliveredAt)

	_, err = delivery.Confirm(ctx, buyerOf(order), order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "confirm after refund: %v", err)
}

func TestCancelRejectsConfirmedOrderBeforeRefunding(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.PaymentStatusCompleted, enums.OrderStatusProcessing)
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).
		Update("buyer_confirmed", true).Error)

	_, err := f.svc.Cancel(context.Background(), buyerOf(order), order.ID, "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	assert.Zero(t, f.refunds.calls)
}
