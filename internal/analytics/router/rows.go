package router

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/digimart-backend/internal/analytics/types"
	analyticswriter "github.com/angelmondragon/digimart-backend/internal/analytics/writer"
	"github.com/angelmondragon/digimart-backend/pkg/logger"
	"github.com/angelmondragon/digimart-backend/pkg/outbox/payloads"
)

func baseRow(envelope types.Envelope, payload any) (types.MarketplaceEventRow, error) {
	payloadJSON, err := analyticswriter.EncodeJSON(payload)
	if err != nil {
		return types.MarketplaceEventRow{}, fmt.Errorf("encode payload json: %w", err)
	}
	return types.MarketplaceEventRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: envelope.OccurredAt.UTC(),
		Payload:    payloadJSON,
	}, nil
}

// shopRows fans an order event out to one row per shop group.
func shopRows(base types.MarketplaceEventRow, shops []payloads.ShopAmount, fill func(*types.MarketplaceEventRow, payloads.ShopAmount)) []types.MarketplaceEventRow {
	rows := make([]types.MarketplaceEventRow, 0, len(shops))
	for _, shop := range shops {
		row := base
		row.ShopID = idPtr(shop.ShopID)
		fill(&row, shop)
		rows = append(rows, row)
	}
	return rows
}

func insertAll(ctx context.Context, writer Writer, logg *logger.Logger, rows []types.MarketplaceEventRow) error {
	for _, row := range rows {
		if err := writer.WriteEvent(ctx, row); err != nil {
			logg.Error(ctx, "failed to insert marketplace row", err)
			return err
		}
	}
	logg.Info(logg.WithField(ctx, "rows", len(rows)), "marketplace rows inserted")
	return nil
}

// Nullable BigQuery columns take pointers; blank values become NULL.

func stringPtr(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

func idPtr(id uuid.UUID) *string {
	if id == uuid.Nil {
		return nil
	}
	s := id.String()
	return &s
}

func int64Ptr(v int64) *int64 { return &v }

// occurredAt prefers the domain timestamp carried in the payload over the
// envelope's emit time.
func occurredAt(domain, emitted time.Time) time.Time {
	if domain.IsZero() {
		return emitted.UTC()
	}
	return domain.UTC()
}
