// Package cron runs the reconciliation jobs that close gaps left by missed webhooks,
// unknown gateway outcomes and abandoned checkouts.
package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/metrics"
)

const defaultTick = time.Minute

// Job is one reconciliation pass. Run must be safe to repeat.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Entry schedules a job every Every. Zero means every tick.
type Entry struct {
	Job   Job
	Every time.Duration
}

type slot struct {
	entry Entry
	due   time.Time
}

// SchedulerParams configure a Scheduler. Tick is how often due jobs are checked.
type SchedulerParams struct {
	Logger  *logger.Logger
	Locks   Locker
	Metrics *metrics.CronJobMetrics
	Tick    time.Duration
	Entries []Entry
	Now     func() time.Time
}

// Scheduler runs each job on its own cadence. A job runs only while its lock is held
// so several cron workers can share the load without running the same job twice.
type Scheduler struct {
	logg    *logger.Logger
	locks   Locker
	metrics *metrics.CronJobMetrics
	tick    time.Duration
	slots   []*slot
	now     func() time.Time
}

func NewScheduler(p SchedulerParams) (*Scheduler, error) {
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	if p.Locks == nil {
		return nil, errors.New("locker required")
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	tick := p.Tick
	if tick <= 0 {
		tick = defaultTick
	}

	seen := map[string]bool{}
	slots := make([]*slot, 0, len(p.Entries))
	for _, e := range p.Entries {
		if e.Job == nil {
			continue
		}
		name := e.Job.Name()
		if seen[name] {
			return nil, fmt.Errorf("job %q registered twice", name)
		}
		seen[name] = true
		if e.Every < tick {
			e.Every = tick
		}
		slots = append(slots, &slot{entry: e})
	}
	return &Scheduler{logg: p.Logger, locks: p.Locks, metrics: p.Metrics, tick: tick, slots: slots, now: now}, nil
}

// Jobs lists the scheduled job names in registration order.
func (s *Scheduler) Jobs() []string {
	names := make([]string, 0, len(s.slots))
	for _, sl := range s.slots {
		names = append(names, sl.entry.Job.Name())
	}
	return names
}

// Run checks for due jobs immediately and then on every tick until ctx ends.
func (s *Scheduler) Run(ctx context.Context) error {
	s.RunDue(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.RunDue(ctx)
		}
	}
}

// RunDue runs every job whose next run time has passed, earliest first, and
// returns how many actually executed.
func (s *Scheduler) RunDue(ctx context.Context) int {
	now := s.now()
	var due []*slot
	for _, sl := range s.slots {
		if !now.Before(sl.due) {
			due = append(due, sl)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })

	ran := 0
	for _, sl := range due {
		if ctx.Err() != nil {
			break
		}
		if s.runSlot(ctx, sl) {
			ran++
		}
	}
	return ran
}

func (s *Scheduler) runSlot(ctx context.Context, sl *slot) bool {
	name := sl.entry.Job.Name()
	ctx = s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	release, held, err := s.locks.Acquire(ctx, name, 2*sl.entry.Every)
	if err != nil {
		s.logg.Error(ctx, "cron lock unavailable", err)
		return false
	}
	if !held {
		s.logg.Debug(ctx, "job running elsewhere, skipping")
		s.metrics.ObserveSkip(name)
		sl.due = s.now().Add(sl.entry.Every)
		return false
	}
	defer release()

	started := s.now()
	err = sl.entry.Job.Run(ctx)
	finished := s.now()
	took := finished.Sub(started)
	s.metrics.ObserveRun(name, took, err, finished)
	sl.due = started.Add(sl.entry.Every)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "job failed", err)
		return true
	}
	s.logg.Info(ctx, "job completed")
	return true
}
