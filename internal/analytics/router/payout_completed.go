package router

import (
	"context"
	"fmt"

	"github.com/angelmondragon/digimart-backend/internal/analytics/types"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

type payoutCompletedHandler struct {
	writer Writer
	logg   *logger.Logger
}

func newPayoutCompletedHandler(writer Writer, logg *logger.Logger) Handler {
	return &payoutCompletedHandler{writer: writer, logg: logg}
}

func (h *payoutCompletedHandler) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*payloads.PayoutEvent)
	if !ok {
		return fmt.Errorf("invalid payload for payout_completed")
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type": envelope.EventType,
		"payout_id":  event.PayoutID,
		"shop_id":    event.ShopID,
	})

	row, err := baseRow(envelope, event)
	if err != nil {
		h.logg.Error(logCtx, "failed to build payout row", err)
		return err
	}
	row.OccurredAt = occurredAt(event.OccurredAt, envelope.OccurredAt)
	row.PayoutID = idPtr(event.PayoutID)
	row.ShopID = idPtr(event.ShopID)
	row.Currency = stringPtr(string(event.Currency))
	row.PayoutCents = int64Ptr(event.Amount)

	return insertAll(logCtx, h.writer, h.logg, []types.MarketplaceEventRow{row})
}
