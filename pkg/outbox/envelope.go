package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/enums"
)

// EnvelopeVersion is written into every new envelope. Consumers reject nothing by
// version today; bump it when Data changes shape incompatibly.
const EnvelopeVersion = 1

// ActorRef identifies who produced the event. Cron and webhook driven events carry
// only a shop or nothing at all.
type ActorRef struct {
	UserID uuid.UUID  `json:"userId"`
	ShopID *uuid.UUID `json:"shopId,omitempty"`
	Role   string     `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published as the
// Pub/Sub message body. EventID equals the outbox row id.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DomainEvent is what services hand to Emit inside their write transaction.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
}

// seal validates e and wraps its data in an envelope identified by id.
func (e DomainEvent) seal(id uuid.UUID, now time.Time) ([]byte, error) {
	if !e.EventType.IsValid() {
		return nil, fmt.Errorf("invalid event type %q", e.EventType)
	}
	if !e.AggregateType.IsValid() {
		return nil, fmt.Errorf("invalid aggregate type %q", e.AggregateType)
	}
	if e.AggregateID == uuid.Nil {
		return nil, errors.New("aggregate id required")
	}
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", e.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    e.Version,
		EventID:    id.String(),
		OccurredAt: e.OccurredAt.UTC(),
		Actor:      e.Actor,
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = EnvelopeVersion
	}
	if e.OccurredAt.IsZero() {
		env.OccurredAt = now.UTC()
	}
	return json.Marshal(env)
}
