// Package worker consumes marketplace events from Pub/Sub and hands them to the
// analytics router exactly once per event id.
package worker

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/internal/analytics/router"
	"github.com/angelmondragon/digimart-backend/internal/analytics/types"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
)

const consumerName = "analytics"

// Handler routes one decoded envelope to its BigQuery rows.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	return fn(ctx, envelope)
}

type dedup interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type verdict bool

const (
	ack  verdict = true
	nack verdict = false
)

// Consumer acks malformed or untracked events so they do not loop, and nacks only
// when a retry could succeed.
type Consumer struct {
	sub     receiver
	handler Handler
	dedup   dedup
	logg    *logger.Logger
}

func NewConsumer(sub receiver, handler Handler, dedup dedup, logg *logger.Logger) (*Consumer, error) {
	switch {
	case sub == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case dedup == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Consumer{sub: sub, handler: handler, dedup: dedup, logg: logg}, nil
}

// Run blocks until ctx is cancelled or the subscription fails.
func (c *Consumer) Run(ctx context.Context) error {
	return c.sub.Receive(ctx, func(msgCtx context.Context, msg *gcppubsub.Message) {
		if c.consume(msgCtx, msg) == ack {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

func (c *Consumer) consume(ctx context.Context, msg *gcppubsub.Message) verdict {
	ctx = c.logg.WithField(ctx, "message_id", msg.ID)

	envelope, err := decodeEnvelope(msg)
	switch {
	case errors.Is(err, errUntracked):
		c.logg.Debug(ctx, "event not tracked by analytics")
		return ack
	case err != nil:
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dropping malformed analytics message")
		return ack
	}

	ctx = c.logg.WithFields(ctx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     envelope.EventType,
		"aggregate_type": envelope.AggregateType,
		"aggregate_id":   envelope.AggregateID,
		"occurred_at":    envelope.OccurredAt.Format(time.RFC3339Nano),
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Warn(ctx, "dropping analytics message with non-uuid event id")
		return ack
	}

	seen, err := c.dedup.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(ctx, "idempotency check failed", err)
		return nack
	}
	if seen {
		c.logg.Info(ctx, "analytics event already recorded")
		return ack
	}

	if err := c.handler.Handle(ctx, envelope); err != nil {
		if errors.Is(err, router.ErrUnsupportedEventType) {
			c.logg.Warn(ctx, "no analytics handler for event")
			return ack
		}
		if !pkgerrors.Retryable(err) {
			c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "dropping analytics event that cannot succeed")
			return ack
		}
		c.logg.Error(ctx, "analytics handler failed", err)
		if err := c.dedup.Delete(ctx, consumerName, eventID); err != nil {
			c.logg.Error(ctx, "failed to clear idempotency marker", err)
		}
		return nack
	}

	c.logg.Info(ctx, "analytics event recorded")
	return ack
}
