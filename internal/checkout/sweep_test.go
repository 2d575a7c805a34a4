package checkout

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/digimart-backend/internal/orders"
	"github.com/angelmondragon/digimart-backend/pkg/db/dbtest"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

func duplicate(buyer, shop uuid.UUID, key string, age time.Duration) *models.Order {
	order := dbtest.Order(buyer, dbtest.Group(shop, 30, dbtest.Item(uuid.New(), 1000, 1)))
	order.FingerprintKey = &key
	order.CreatedAt = time.Now().UTC().Add(-age)
	return order
}

func newTestSweeper(t *testing.T, locker *stubLocker) (*Sweeper, orders.Repository) {
	t.Helper()
	repo := orders.NewRepository(dbtest.Open(t))
	sweeper, err := NewSweeper(repo, locker, time.Minute, logger.New(logger.Options{ServiceName: "test", Output: &bytes.Buffer{}}))
	require.NoError(t, err)
	return sweeper, repo
}

func TestSweepKeepsNewestAndDeletesStaleCopies(t *testing.T) {
	locker := &stubLocker{}
	sweeper, repo := newTestSweeper(t, locker)
	ctx := context.Background()
	buyer, shop := uuid.New(), uuid.New()

	newest := duplicate(buyer, shop, "fp-1", time.Minute)
	stale := duplicate(buyer, shop, "fp-1", time.Hour)
	failed := duplicate(buyer, shop, "fp-1", 2*time.Hour)
	failed.PaymentStatus = enums.PaymentStatusFailed
	for _, order := range []*models.Order{newest, stale, failed} {
		require.NoError(t, repo.Create(ctx, order))
	}

	summary, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepSummary{Keys: 1, Kept: 1, Deleted: 2}, summary)
	assert.Equal(t, 1, locker.released)

	rows, err := repo.ListByFingerprintKey(ctx, "fp-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, newest.ID, rows[0].ID)
}

func TestSweepNeverDeletesOrdersHoldingMoney(t *testing.T) {
	sweeper, repo := newTestSweeper(t, &stubLocker{})
	ctx := context.Background()
	buyer, shop := uuid.New(), uuid.New()

	newest := duplicate(buyer, shop, "fp-2", time.Minute)
	paid := duplicate(buyer, shop, "fp-2", time.Hour)
	paid.PaymentStatus = enums.PaymentStatusCompleted
	charging := duplicate(buyer, shop, "fp-2", 2*time.Hour)
	ref := "sq_pending"
	charging.ChargeReference = &ref
	for _, order := range []*models.Order{newest, paid, charging} {
		require.NoError(t, repo.Create(ctx, order))
	}

	summary, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Deleted)

	rows, err := repo.ListByFingerprintKey(ctx, "fp-2")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestSweepSkipsKeysWithCheckoutInFlight(t *testing.T) {
	locker := &stubLocker{held: map[string]bool{lockScope + ":fp-3": true}}
	sweeper, repo := newTestSweeper(t, locker)
	ctx := context.Background()
	buyer, shop := uuid.New(), uuid.New()

	for _, age := range []time.Duration{time.Minute, time.Hour} {
		require.NoError(t, repo.Create(ctx, duplicate(buyer, shop, "fp-3", age)))
	}

	summary, err := sweeper.Sweep(ctx)
	require.Error(t, err)
	assert.Equal(t, SweepSummary{Keys: 1, Skipped: 1}, summary)
	assert.Zero(t, locker.released)
}

func TestDeletable(t *testing.T) {
	ref := "sq_1"
	refund := enums.RefundStatusPending
	base := func() *models.Order {
		return dbtest.Order(uuid.New(), dbtest.Group(uuid.New(), 3, dbtest.Item(uuid.New(), 100, 1)))
	}

	assert.True(t, Deletable(base()))

	paid := base()
	paid.PaymentStatus = enums.PaymentStatusCompleted
	assert.False(t, Deletable(paid))

	charging := base()
	charging.ChargeReference = &ref
	assert.False(t, Deletable(charging))

	reason := "context deadline exceeded"
	unresolved := base()
	unresolved.LastPaymentError = &reason
	assert.False(t, Deletable(unresolved))

	failed := base()
	failed.PaymentStatus = enums.PaymentStatusFailed
	failed.ChargeReference = &ref
	assert.True(t, Deletable(failed))

	refunding := base()
	refunding.PaymentStatus = enums.PaymentStatusFailed
	refunding.RefundStatus = &refund
	assert.False(t, Deletable(refunding))
}
