package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/digimart-backend/internal/checkout"
)

type duplicateSweeper interface {
	Sweep(ctx context.Context) (checkout.SweepSummary, error)
}

// NewDedupSweepJob wraps the duplicate checkout sweeper.
func NewDedupSweepJob(sweeper duplicateSweeper) (Job, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	return &dedupSweepJob{sweeper: sweeper}, nil
}

type dedupSweepJob struct {
	sweeper duplicateSweeper
}

func (j *dedupSweepJob) Name() string { return "checkout-dedup-sweep" }

func (j *dedupSweepJob) Run(ctx context.Context) error {
	if _, err := j.sweeper.Sweep(ctx); err != nil {
		return fmt.Errorf("dedup sweep: %w", err)
	}
	return nil
}
