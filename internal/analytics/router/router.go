package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/digimart-backend/internal/analytics/types"
	"github.com/angelmondragon/digimart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/digimart-backend/pkg/errors"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	WriteEvent(ctx context.Context, row types.MarketplaceEventRow) error
}

// Handler turns one decoded event into warehouse rows. payload is a pointer to the
// event's payloads struct.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

// route pairs a handler with a constructor for the payload type it expects.
type route struct {
	newPayload func() any
	handler    Handler
}

func routeFor[T any](h Handler) route {
	return route{newPayload: func() any { return new(T) }, handler: h}
}

// Router dispatches analytics envelopes by event type.
type Router struct {
	routes map[enums.AnalyticsEventType]route
	logg   *logger.Logger
}

// NewRouter registers the built-in handlers. overrides replaces the handler of an
// already known event type; unknown types in overrides are ignored.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.AnalyticsEventType]Handler) (*Router, error) {
	switch {
	case writer == nil:
		return nil, errors.New("writer is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}

	routes := map[enums.AnalyticsEventType]route{
		enums.AnalyticsEventPaymentCompleted: routeFor[payloads.PaymentStatusEvent](newPaymentCompletedHandler(writer, logg)),
		enums.AnalyticsEventOrderConfirmed:   routeFor[payloads.OrderConfirmedEvent](newOrderConfirmedHandler(writer, logg)),
		enums.AnalyticsEventOrderCancelled:   routeFor[payloads.OrderCancelledEvent](newOrderCancelledHandler(writer, logg)),
		enums.AnalyticsEventPayoutCompleted:  routeFor[payloads.PayoutEvent](newPayoutCompletedHandler(writer, logg)),
	}
	for eventType, h := range overrides {
		if rt, known := routes[eventType]; known && h != nil {
			rt.handler = h
			routes[eventType] = rt
		}
	}
	return &Router{routes: routes, logg: logg}, nil
}

// Handle decodes the envelope payload and passes it to the matching handler. A
// payload that does not decode is a validation error and will never succeed on retry.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	rt, ok := r.routes[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	payload := rt.newPayload()
	if err := envelope.DecodePayload(payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("decode %s payload", envelope.EventType))
	}
	return rt.handler.Handle(ctx, envelope, payload)
}
