package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/internal/checkout"
	"github.com/angelmondragon/digimart-backend/internal/payments"
	"github.com/angelmondragon/digimart-backend/internal/payouts"
	"github.com/angelmondragon/digimart-backend/internal/refunds"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

type fakeOrderLister struct {
	orders     []models.Order
	cutoff     time.Time
	limit      int
	listErr    error
	refundRows []models.Order
}

func (f *fakeOrderLister) ListPendingPayments(_ context.Context, createdBefore time.Time, limit int) ([]models.Order, error) {
	f.cutoff, f.limit = createdBefore, limit
	return f.orders, f.listErr
}

func (f *fakeOrderLister) ListPendingRefunds(_ context.Context, updatedBefore time.Time, limit int) ([]models.Order, error) {
	f.cutoff, f.limit = updatedBefore, limit
	return f.refundRows, f.listErr
}

type fakeSyncer struct {
	fail  map[uuid.UUID]bool
	calls []uuid.UUID
}

func (f *fakeSyncer) SyncOrder(_ context.Context, order *models.Order) (*payments.Result, error) {
	f.calls = append(f.calls, order.ID)
	if f.fail[order.ID] {
		return nil, errors.New("gateway unavailable")
	}
	return &payments.Result{Order: order, Changed: true}, nil
}

func TestPaymentSyncJobContinuesPastFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first, second, third := uuid.New(), uuid.New(), uuid.New()
	lister := &fakeOrderLister{orders: []models.Order{{ID: first}, {ID: second}, {ID: third}}}
	syncer := &fakeSyncer{fail: map[uuid.UUID]bool{second: true}}

	jobIface, err := NewPaymentSyncJob(PaymentSyncJobParams{Logger: testLogger(), Orders: lister, Sync: syncer, Batch: 25})
	if err != nil {
		t.Fatalf("NewPaymentSyncJob: %v", err)
	}
	job := jobIface.(*paymentSyncJob)
	job.now = func() time.Time { return now }

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error for failed order")
	}
	if len(syncer.calls) != 3 {
		t.Fatalf("expected every order polled, got %d", len(syncer.calls))
	}
	if want := now.Add(-defaultPaymentSyncAfter); !lister.cutoff.Equal(want) || lister.limit != 25 {
		t.Fatalf("unexpected query cutoff=%s limit=%d", lister.cutoff, lister.limit)
	}
}

func TestPaymentSyncJobListError(t *testing.T) {
	lister := &fakeOrderLister{listErr: errors.New("db down")}
	job, err := NewPaymentSyncJob(PaymentSyncJobParams{Logger: testLogger(), Orders: lister, Sync: &fakeSyncer{}})
	if err != nil {
		t.Fatalf("NewPaymentSyncJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected list error")
	}
}

type fakeRefundReconciler struct {
	outcome refunds.Outcome
	changed bool
	err     error
	calls   int
}

func (f *fakeRefundReconciler) Reconcile(context.Context, *models.Order) (refunds.Outcome, bool, error) {
	f.calls++
	return f.outcome, f.changed, f.err
}

func TestRefundReconcileJobPollsPendingRefunds(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lister := &fakeOrderLister{refundRows: []models.Order{{ID: uuid.New()}, {ID: uuid.New()}}}
	reconciler := &fakeRefundReconciler{outcome: refunds.Outcome{Status: enums.RefundStatusSucceeded}, changed: true}

	jobIface, err := NewRefundReconcileJob(RefundReconcileJobParams{Logger: testLogger(), Orders: lister, Refunds: reconciler, MinAge: time.Hour})
	if err != nil {
		t.Fatalf("NewRefundReconcileJob: %v", err)
	}
	job := jobIface.(*refundReconcileJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if reconciler.calls != 2 {
		t.Fatalf("expected 2 reconcile calls, got %d", reconciler.calls)
	}
	if want := now.Add(-time.Hour); !lister.cutoff.Equal(want) || lister.limit != defaultRefundBatch {
		t.Fatalf("unexpected query cutoff=%s limit=%d", lister.cutoff, lister.limit)
	}
}

func TestRefundReconcileJobAggregatesErrors(t *testing.T) {
	lister := &fakeOrderLister{refundRows: []models.Order{{ID: uuid.New()}, {ID: uuid.New()}}}
	reconciler := &fakeRefundReconciler{err: errors.New("gateway unavailable")}
	job, err := NewRefundReconcileJob(RefundReconcileJobParams{Logger: testLogger(), Orders: lister, Refunds: reconciler})
	if err != nil {
		t.Fatalf("NewRefundReconcileJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if reconciler.calls != 2 {
		t.Fatalf("expected both orders attempted, got %d", reconciler.calls)
	}
}

type fakePayoutReconciler struct {
	summary payouts.ReconcileSummary
	err     error
}

func (f *fakePayoutReconciler) ReconcileProcessing(context.Context) (payouts.ReconcileSummary, error) {
	return f.summary, f.err
}

func TestPayoutReconcileJob(t *testing.T) {
	job, err := NewPayoutReconcileJob(testLogger(), &fakePayoutReconciler{summary: payouts.ReconcileSummary{Checked: 2, Completed: 1, Waiting: 1}})
	if err != nil {
		t.Fatalf("NewPayoutReconcileJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	job, _ = NewPayoutReconcileJob(testLogger(), &fakePayoutReconciler{err: errors.New("boom")})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeSweeper struct {
	err   error
	calls int
}

func (f *fakeSweeper) Sweep(context.Context) (checkout.SweepSummary, error) {
	f.calls++
	return checkout.SweepSummary{Keys: 1}, f.err
}

func TestDedupSweepJob(t *testing.T) {
	sweeper := &fakeSweeper{}
	job, err := NewDedupSweepJob(sweeper)
	if err != nil {
		t.Fatalf("NewDedupSweepJob: %v", err)
	}
	if job.Name() != "checkout-dedup-sweep" {
		t.Fatalf("unexpected name %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil || sweeper.calls != 1 {
		t.Fatalf("expected one clean sweep, calls=%d err=%v", sweeper.calls, err)
	}

	sweeper.err = errors.New("lock held")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected sweep error")
	}
}
