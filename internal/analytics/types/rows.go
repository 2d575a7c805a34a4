package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// MarketplaceEventRow mirrors the marketplace_events BigQuery schema. Order level
// events produce one row per shop so earnings can be grouped by shop_id.
type MarketplaceEventRow struct {
	EventID          string             `bigquery:"event_id"`
	EventType        string             `bigquery:"event_type"`
	OccurredAt       time.Time          `bigquery:"occurred_at"`
	OrderID          *string            `bigquery:"order_id"`
	PayoutID         *string            `bigquery:"payout_id"`
	BuyerID          *string            `bigquery:"buyer_id"`
	ShopID           *string            `bigquery:"shop_id"`
	Currency         *string            `bigquery:"currency"`
	GrossCents       *int64             `bigquery:"gross_cents"`
	PlatformFeeCents *int64             `bigquery:"platform_fee_cents"`
	SellerNetCents   *int64             `bigquery:"seller_net_cents"`
	RefundCents      *int64             `bigquery:"refund_cents"`
	PayoutCents      *int64             `bigquery:"payout_cents"`
	Payload          cbigquery.NullJSON `bigquery:"payload"`
}
