package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox"
)

const consumerName = "notifications"

type creator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type processedTracker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// Consumer turns domain events from the notification subscription into inbox rows.
// Delivery is best effort: malformed messages are acked and dropped.
type Consumer struct {
	repo         creator
	subscription *pubsub.Subscriber
	processed    processedTracker
	logg         *logger.Logger
}

func NewConsumer(repo creator, subscription *pubsub.Subscriber, processed processedTracker, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("notification subscription required")
	}
	if processed == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{repo: repo, subscription: subscription, processed: processed, logg: logg}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes["event_type"], msg.Data) {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process handles one message and reports whether it should be redelivered.
func (c *Consumer) process(ctx context.Context, messageID, eventType string, data []byte) bool {
	ctx = c.logg.WithFields(ctx, map[string]any{"message_id": messageID, "event_type": eventType})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(ctx, "failed to decode envelope", err)
		return false
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(ctx, "invalid event id", err)
		return false
	}

	notes, err := Build(enums.OutboxEventType(eventType), envelope.Data)
	if err != nil {
		c.logg.Error(ctx, "failed to build notifications", err)
		return false
	}
	if len(notes) == 0 {
		c.logg.Debug(ctx, "event produces no notifications")
		return false
	}

	already, err := c.processed.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.logg.Error(ctx, "idempotency check failed", err)
		return true
	}
	if already {
		c.logg.Info(ctx, "event already processed")
		return false
	}

	for i := range notes {
		if err := c.repo.Create(ctx, &notes[i]); err != nil {
			c.logg.Error(ctx, "notification insert failed", err)
			if delErr := c.processed.Delete(ctx, consumerName, eventID); delErr != nil {
				c.logg.Warn(ctx, "failed to clear idempotency marker")
			}
			return true
		}
	}
	c.logg.Info(c.logg.WithField(ctx, "notifications", len(notes)), "notifications created")
	return false
}
