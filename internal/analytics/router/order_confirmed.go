package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/digimart-backend/internal/analytics/types"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

type orderConfirmedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newOrderConfirmedHandler(writer Writer, logg *logger.Logger) Handler {
	return &orderConfirmedHandler{writer: writer, logg: logg}
}

func (h *orderConfirmedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.OrderConfirmedEvent)
	if !ok {
		return fmt.Errorf("invalid payload for order_confirmed")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"order_id":   event.OrderID,
	})

	base, err := baseRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build earnings row", err)
		return err
	}
	base.OccurredAt = occurredAt(event.ConfirmedAt, envelope.OccurredAt)
	base.OrderID = idPtr(event.OrderID)
	base.BuyerID = idPtr(event.BuyerID)
	base.Currency = stringPtr(string(event.Currency))

	rows := shopRows(base, event.Shops, func(row *types.MarketplaceEventRow, shop payloads.ShopAmount) {
		row.SellerNetCents = int64Ptr(shop.SellerNetAmount)
	})
	return insertAll(logCtx, h.writer, h.logg, rows)
}
