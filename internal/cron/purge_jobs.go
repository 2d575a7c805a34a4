package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

const defaultRetention = 30 * 24 * time.Hour

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type notificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob deletes published outbox rows older than keep. Rows still
// waiting for the relay are never touched.
func NewOutboxRetentionJob(logg *logger.Logger, repo outboxPurger, keep time.Duration) (Job, error) {
	if repo == nil {
		return nil, errors.New("outbox repository required")
	}
	return newPurgeJob("outbox-retention", logg, repo.DeletePublishedBefore, keep)
}

// NewNotificationCleanupJob deletes read notifications older than keep.
func NewNotificationCleanupJob(logg *logger.Logger, repo notificationPurger, keep time.Duration) (Job, error) {
	if repo == nil {
		return nil, errors.New("notifications repository required")
	}
	return newPurgeJob("notification-cleanup", logg, repo.DeleteReadBefore, keep)
}

// purgeJob removes rows older than a fixed window. keep falls back to 30 days.
type purgeJob struct {
	name  string
	logg  *logger.Logger
	purge func(ctx context.Context, cutoff time.Time) (int64, error)
	keep  time.Duration
	now   func() time.Time
}

func newPurgeJob(name string, logg *logger.Logger, purge func(context.Context, time.Time) (int64, error), keep time.Duration) (*purgeJob, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if keep <= 0 {
		keep = defaultRetention
	}
	return &purgeJob{name: name, logg: logg, purge: purge, keep: keep, now: time.Now}, nil
}

func (j *purgeJob) Name() string { return j.name }

func (j *purgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.keep)
	n, err := j.purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"job":          j.name,
		"cutoff":       cutoff,
		"keep":         j.keep.String(),
		"rows_deleted": n,
	}), "cron.purge_complete")
	return nil
}
