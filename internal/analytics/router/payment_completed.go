package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/digimart-backend/internal/analytics/types"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

type paymentCompletedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newPaymentCompletedHandler(writer Writer, logg *logger.Logger) Handler {
	return &paymentCompletedHandler{writer: writer, logg: logg}
}

func (h *paymentCompletedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.PaymentStatusEvent)
	if !ok {
		return fmt.Errorf("invalid payload for payment_completed")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"order_id":   event.OrderID,
		"shops":      len(event.Shops),
	})

	base, err := baseRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build gross sales row", err)
		return err
	}
	base.OccurredAt = occurredAt(event.OccurredAt, envelope.OccurredAt)
	base.OrderID = idPtr(event.OrderID)
	base.BuyerID = idPtr(event.BuyerID)
	base.Currency = stringPtr(string(event.Currency))

	rows := shopRows(base, event.Shops, func(row *types.MarketplaceEventRow, shop payloads.ShopAmount) {
		row.GrossCents = int64Ptr(shop.GrossAmount)
		row.PlatformFeeCents = int64Ptr(shop.GrossAmount - shop.SellerNetAmount)
		row.SellerNetCents = int64Ptr(shop.SellerNetAmount)
	})
	return insertAll(logCtx, h.writer, h.logg, rows)
}
