package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/registry"
)

type disposition int

const (
	published disposition = iota
	retryLater
	deadLetter
)

// outcome is what happened to one outbox row during a drain.
type outcome struct {
	disposition disposition
	reason      enums.OutboxDLQErrorReason
	topic       string
	eventID     string
	occurredAt  time.Time
	err         error
}

// dispatch resolves the row and publishes it to its owning topic and every fan-out
// topic in order. A retry republishes to all of them; consumers dedupe on event_id.
func (r *Relay) dispatch(ctx context.Context, row models.OutboxEvent) outcome {
	resolved, err := r.registry.Resolve(row)
	if err != nil {
		return outcome{disposition: deadLetter, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}

	out := outcome{
		disposition: published,
		topic:       resolved.Route.Topic,
		eventID:     resolved.Envelope.EventID,
		occurredAt:  resolved.Envelope.OccurredAt,
	}
	msg := message(row, resolved.Envelope.EventID)
	for _, topic := range resolved.Route.Topics() {
		if err := r.send(ctx, topic, msg); err != nil {
			out.topic, out.err = topic, err
			break
		}
	}
	if out.err == nil {
		return out
	}

	switch {
	case errors.Is(out.err, registry.ErrPermanent):
		out.disposition, out.reason = deadLetter, enums.OutboxDLQReasonNonRetryable
	case row.AttemptCount+1 >= r.maxAttempts:
		out.disposition, out.reason = deadLetter, enums.OutboxDLQReasonMaxAttempts
		out.err = fmt.Errorf("max publish attempts reached: %w", out.err)
	default:
		out.disposition = retryLater
	}
	return out
}

func (r *Relay) send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	s := r.sink(topic)
	if s == nil {
		return registry.Permanent(fmt.Errorf("no publisher for topic %s", topic))
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return s.send(pubCtx, msg)
}

func message(row models.OutboxEvent, eventID string) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

// settle records the outcome on the locked row.
func (r *Relay) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, out outcome) error {
	logCtx := r.logg.WithFields(ctx, r.rowFields(row, out))

	switch out.disposition {
	case published:
		if err := r.outbox.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.logg.Info(logCtx, "outbox event published")
	case retryLater:
		r.logg.Warn(r.logg.WithField(logCtx, "error", out.err.Error()), "outbox publish failed, will retry")
		if err := r.outbox.MarkFailedTx(tx, row.ID, out.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", row.ID, err)
		}
	case deadLetter:
		r.logg.Warn(r.logg.WithField(logCtx, "error", out.err.Error()), "outbox event dead-lettered")
		msg := out.err.Error()
		entry := models.OutboxDLQ{
			EventID:       row.ID,
			EventType:     row.EventType,
			AggregateType: row.AggregateType,
			AggregateID:   row.AggregateID,
			Payload:       row.Payload,
			ErrorReason:   out.reason,
			ErrorMessage:  &msg,
			AttemptCount:  row.AttemptCount,
			FailedAt:      time.Now().UTC(),
		}
		if err := r.dlq.InsertTx(tx, entry); err != nil {
			return fmt.Errorf("insert dlq %s: %w", row.ID, err)
		}
		if err := r.outbox.MarkTerminalTx(tx, row.ID, out.err, r.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", row.ID, err)
		}
	}
	return nil
}

func (r *Relay) rowFields(row models.OutboxEvent, out outcome) map[string]any {
	fields := map[string]any{
		"outbox_id":      row.ID.String(),
		"event_type":     row.EventType,
		"aggregate_type": row.AggregateType,
		"aggregate_id":   row.AggregateID.String(),
		"attempt_count":  row.AttemptCount,
	}
	if row.AggregateType == enums.AggregateOrder {
		fields["order_id"] = row.AggregateID.String()
	}
	if out.disposition != published {
		fields["attempt_count"] = row.AttemptCount + 1
	}
	if out.reason != "" {
		fields["error_reason"] = out.reason
	}
	if out.eventID != "" {
		fields["event_id"] = out.eventID
		fields["occurred_at"] = out.occurredAt.Format(time.RFC3339Nano)
	}
	if out.topic != "" {
		fields["topic"] = out.topic
	}
	return fields
}
