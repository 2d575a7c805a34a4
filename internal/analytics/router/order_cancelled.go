package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/digimart-backend/internal/analytics/types"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

type orderCancelledHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderCancelledHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderCancelledHandler{writer: writer, logg: logg}
}

// Handle records a single order level row. Refunds are not split across shops.
func (h *orderCancelledHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderCancelledEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_cancelled")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"order_id":   event.OrderID,
	})

	row, err := baseRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build cancellation row", err)
		return err
	}
	row.OccurredAt = occurredAt(event.CancelledAt, envelope.OccurredAt)
	row.OrderID = idPtr(event.OrderID)
	row.BuyerID = idPtr(event.BuyerID)
	row.Currency = stringPtr(string(event.Currency))
	row.GrossCents = int64Ptr(event.GrossTotal)
	row.RefundCents = int64Ptr(event.RefundedAmount)

	return insertAll(logCtx, h.writer, h.logg, []types.MarketplaceEventRow{row})
}
