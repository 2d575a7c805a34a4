// Package registry decides where each outbox event type is published and checks
// that a stored row still decodes before it leaves the database.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/pkg/config"
	"github.com/angelmondragon/digimart-backend/pkg/db/models"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	"github.com/angelmondragon/digimart-backend/pkg/outbox"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

// ErrPermanent marks failures that no retry can fix. The relay dead-letters them.
var ErrPermanent = errors.New("permanent outbox failure")

// Permanent wraps err so errors.Is(err, ErrPermanent) holds.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Route is where one event type goes. Topic owns the event; FanOut receives copies.
type Route struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	FanOut        []string
	newPayload    func() any
}

// Topics is the owning topic followed by each distinct fan-out topic.
func (r Route) Topics() []string {
	out := make([]string, 0, 1+len(r.FanOut))
	if r.Topic != "" {
		out = append(out, r.Topic)
	}
	for _, t := range r.FanOut {
		if t != "" && t != r.Topic {
			out = append(out, t)
		}
	}
	return out
}

// Resolved is a row that passed validation, with its decoded payload.
type Resolved struct {
	Route    Route
	Envelope outbox.PayloadEnvelope
	Payload  any
}

type Registry struct {
	routes map[enums.OutboxEventType]Route
}

func payload[T any]() func() any { return func() any { return new(T) } }

// New builds the routing table from cfg. Buyer and seller facing events fan out to
// the notification topic; revenue events also reach analytics when it is set.
func New(cfg config.PubSubConfig) (*Registry, error) {
	switch {
	case cfg.OrdersTopic == "":
		return nil, errors.New("orders topic is required")
	case cfg.PayoutsTopic == "":
		return nil, errors.New("payouts topic is required")
	case cfg.NotificationTopic == "":
		return nil, errors.New("notification topic is required")
	}

	notify := []string{cfg.NotificationTopic}
	notifyAndAnalytics := notify
	if cfg.AnalyticsTopic != "" {
		notifyAndAnalytics = []string{cfg.NotificationTopic, cfg.AnalyticsTopic}
	}

	order, payout := enums.AggregateOrder, enums.AggregatePayout
	table := []Route{
		{enums.EventOrderCreated, order, cfg.OrdersTopic, nil, payload[payloads.OrderCreatedEvent]()},
		{enums.EventPaymentCompleted, order, cfg.OrdersTopic, notifyAndAnalytics, payload[payloads.PaymentStatusEvent]()},
		{enums.EventPaymentFailed, order, cfg.OrdersTopic, notify, payload[payloads.PaymentStatusEvent]()},
		{enums.EventOrderDelivered, order, cfg.OrdersTopic, notify, payload[payloads.OrderDeliveredEvent]()},
		{enums.EventOrderConfirmed, order, cfg.OrdersTopic, notifyAndAnalytics, payload[payloads.OrderConfirmedEvent]()},
		{enums.EventOrderCancelled, order, cfg.OrdersTopic, notifyAndAnalytics, payload[payloads.OrderCancelledEvent]()},
		{enums.EventRefundRecorded, order, cfg.OrdersTopic, notify, payload[payloads.RefundRecordedEvent]()},
		{enums.EventPayoutCompleted, payout, cfg.PayoutsTopic, notifyAndAnalytics, payload[payloads.PayoutEvent]()},
		{enums.EventPayoutFailed, payout, cfg.PayoutsTopic, notify, payload[payloads.PayoutEvent]()},
	}

	reg := &Registry{routes: make(map[enums.OutboxEventType]Route, len(table))}
	for _, r := range table {
		reg.routes[r.EventType] = r
	}
	return reg, nil
}

// Route returns the route registered for eventType.
func (reg *Registry) Route(eventType enums.OutboxEventType) (Route, bool) {
	r, ok := reg.routes[eventType]
	return r, ok
}

// Resolve checks row against its route and decodes the payload. Every error it
// returns is permanent.
func (reg *Registry) Resolve(row models.OutboxEvent) (*Resolved, error) {
	r, ok := reg.routes[row.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("unsupported event type %s", row.EventType))
	}
	if r.AggregateType != row.AggregateType {
		return nil, Permanent(fmt.Errorf("%s expects aggregate %s, row has %s", row.EventType, r.AggregateType, row.AggregateType))
	}
	if row.AggregateID == uuid.Nil {
		return nil, Permanent(errors.New("missing aggregate_id"))
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal(row.Payload, &env); err != nil {
		return nil, Permanent(fmt.Errorf("decode envelope: %w", err))
	}
	body := r.newPayload()
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, Permanent(fmt.Errorf("%s has no payload", row.EventType))
	}
	if err := json.Unmarshal(env.Data, body); err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", row.EventType, err))
	}
	return &Resolved{Route: r, Envelope: env, Payload: body}, nil
}
