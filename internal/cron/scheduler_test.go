package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/digimart-backend/pkg/metrics"
)

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type memoryLocker struct {
	held     map[string]bool
	ttls     map[string]time.Duration
	released []string
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: map[string]bool{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLocker) Acquire(_ context.Context, job string, ttl time.Duration) (func(), bool, error) {
	if m.held[job] {
		return func() {}, false, nil
	}
	m.held[job] = true
	m.ttls[job] = ttl
	return func() {
		delete(m.held, job)
		m.released = append(m.released, job)
	}, true, nil
}

func newTestScheduler(t *testing.T, locks Locker, c *clock, entries ...Entry) *Scheduler {
	t.Helper()
	s, err := NewScheduler(SchedulerParams{
		Logger:  testLogger(),
		Locks:   locks,
		Metrics: metrics.NewCronJobMetrics(prometheus.NewRegistry()),
		Tick:    time.Minute,
		Entries: entries,
		Now:     c.now,
	})
	require.NoError(t, err)
	return s
}

func TestRunDueHonoursEachJobCadence(t *testing.T) {
	c := &clock{t: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
	sync := &countingJob{name: "payment-sync"}
	sweep := &countingJob{name: "checkout-dedup-sweep"}
	s := newTestScheduler(t, newMemoryLocker(), c,
		Entry{Job: sync, Every: 5 * time.Minute},
		Entry{Job: sweep, Every: time.Hour},
	)

	assert.Equal(t, 2, s.RunDue(context.Background()))
	for i := 0; i < 12; i++ {
		c.advance(5 * time.Minute)
		s.RunDue(context.Background())
	}
	assert.Equal(t, 13, sync.runs)
	assert.Equal(t, 2, sweep.runs)
}

func TestRunDueContinuesPastFailingJob(t *testing.T) {
	c := &clock{t: time.Now()}
	failing := &countingJob{name: "payout-reconcile", err: errors.New("stripe unavailable")}
	next := &countingJob{name: "refund-reconcile"}
	locks := newMemoryLocker()
	s := newTestScheduler(t, locks, c, Entry{Job: failing}, Entry{Job: next})

	assert.Equal(t, 2, s.RunDue(context.Background()))
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 1, next.runs)
	assert.ElementsMatch(t, []string{"payout-reconcile", "refund-reconcile"}, locks.released)
}

func TestRunDueSkipsJobsLockedElsewhere(t *testing.T) {
	c := &clock{t: time.Now()}
	job := &countingJob{name: "payment-sync"}
	locks := newMemoryLocker()
	locks.held["payment-sync"] = true
	s := newTestScheduler(t, locks, c, Entry{Job: job, Every: 5 * time.Minute})

	assert.Zero(t, s.RunDue(context.Background()))
	assert.Zero(t, job.runs)

	delete(locks.held, "payment-sync")
	c.advance(time.Minute)
	assert.Zero(t, s.RunDue(context.Background()), "skipped job waits a full interval")
	c.advance(4 * time.Minute)
	assert.Equal(t, 1, s.RunDue(context.Background()))
}

func TestLeaseOutlivesInterval(t *testing.T) {
	locks := newMemoryLocker()
	s := newTestScheduler(t, locks, &clock{t: time.Now()}, Entry{Job: &countingJob{name: "outbox-retention"}, Every: 24 * time.Hour})

	s.RunDue(context.Background())
	assert.Equal(t, 48*time.Hour, locks.ttls["outbox-retention"])
}

func TestNewSchedulerValidation(t *testing.T) {
	_, err := NewScheduler(SchedulerParams{Locks: newMemoryLocker()})
	assert.Error(t, err)

	_, err = NewScheduler(SchedulerParams{Logger: testLogger()})
	assert.Error(t, err)

	dup := &countingJob{name: "payment-sync"}
	_, err = NewScheduler(SchedulerParams{Logger: testLogger(), Locks: newMemoryLocker(), Entries: []Entry{{Job: dup}, {Job: dup}}})
	assert.Error(t, err)

	s, err := NewScheduler(SchedulerParams{Logger: testLogger(), Locks: newMemoryLocker(), Entries: []Entry{{Job: dup}, {Job: nil}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"payment-sync"}, s.Jobs())
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &countingJob{name: "payment-sync"}
	s := newTestScheduler(t, newMemoryLocker(), &clock{t: time.Now()}, Entry{Job: job})
	cancel()

	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
	assert.Zero(t, job.runs)
}
