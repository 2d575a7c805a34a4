package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/config"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/registry"
)

const (
	fallbackBatch       = 50
	fallbackPoll        = 500 * time.Millisecond
	fallbackMaxAttempts = 10
	publishTimeout      = 15 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.Resolved, error)
}

// RelayParams wires the relay. Topics is optional in tests when Sink is set.
type RelayParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       dbClient
	Topics   topicSource
	Sink     sinkFactory
	Outbox   outboxRepository
	DLQ      dlqRepository
	Registry registryResolver
}

// Relay drains committed outbox rows onto Pub/Sub. Each row is marked published,
// failed or dead-lettered inside the same transaction that locked it.
type Relay struct {
	logg        *logger.Logger
	db          dbClient
	topics      topicSource
	sink        sinkFactory
	outbox      outboxRepository
	dlq         dlqRepository
	registry    registryResolver
	batch       int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(p RelayParams) (*Relay, error) {
	switch {
	case p.Config == nil:
		return nil, errors.New("config is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	case p.DB == nil:
		return nil, errors.New("database client is required")
	case p.Topics == nil && p.Sink == nil:
		return nil, errors.New("pubsub client is required")
	case p.Outbox == nil:
		return nil, errors.New("outbox repository is required")
	case p.DLQ == nil:
		return nil, errors.New("dlq repository is required")
	case p.Registry == nil:
		return nil, errors.New("event registry is required")
	}

	sink := p.Sink
	if sink == nil {
		sink = topicSink(p.Topics)
	}
	oc := p.Config.Outbox
	return &Relay{
		logg:        p.Logger,
		db:          p.DB,
		topics:      p.Topics,
		sink:        sink,
		outbox:      p.Outbox,
		dlq:         p.DLQ,
		registry:    p.Registry,
		batch:       positiveOr(oc.BatchSize, fallbackBatch),
		maxAttempts: positiveOr(oc.MaxAttempts, fallbackMaxAttempts),
		poll:        pollInterval(oc.PollIntervalMS),
	}, nil
}

// Run polls until ctx is cancelled. A full batch is followed immediately by the next
// one; an empty batch or a store error waits on the pacer.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.checkDependencies(ctx); err != nil {
		return err
	}

	pace := newPacer(r.poll)
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		drained, err := r.drain(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox drain failed", err)
			wait = pace.failure()
		case drained > 0:
			pace.reset()
			continue
		default:
			wait = pace.idle()
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

func (r *Relay) checkDependencies(ctx context.Context) error {
	if err := r.db.Ping(ctx); err != nil {
		r.logg.Error(ctx, "database ping failed", err)
		return fmt.Errorf("database ping failed: %w", err)
	}
	if r.topics == nil {
		return nil
	}
	if err := r.topics.Ping(ctx); err != nil {
		r.logg.Error(ctx, "pubsub ping failed", err)
		return fmt.Errorf("pubsub ping failed: %w", err)
	}
	return nil
}

// drain handles one locked batch and reports how many rows it touched.
func (r *Relay) drain(ctx context.Context) (int, error) {
	var touched int
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.outbox.FetchUnpublishedForPublish(tx, r.batch, r.maxAttempts)
		if err != nil {
			return err
		}
		touched = len(rows)
		for _, row := range rows {
			outcome := r.dispatch(ctx, row)
			if err := r.settle(ctx, tx, row, outcome); err != nil {
				return err
			}
		}
		return nil
	})
	return touched, err
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func pollInterval(ms int) time.Duration {
	if ms <= 0 {
		return fallbackPoll
	}
	return time.Duration(ms) * time.Millisecond
}
