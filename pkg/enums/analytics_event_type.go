package enums

import "slices"

// AnalyticsEventType is the canonical event_type for analytics routing.
type AnalyticsEventType string

const (
	AnalyticsEventPaymentCompleted AnalyticsEventType = "payment_completed"
	AnalyticsEventOrderConfirmed   AnalyticsEventType = "order_confirmed"
	AnalyticsEventOrderCancelled   AnalyticsEventType = "order_cancelled"
	AnalyticsEventPayoutCompleted  AnalyticsEventType = "payout_completed"
)

var validAnalyticsEventTypes = []AnalyticsEventType{
	AnalyticsEventPaymentCompleted,
	AnalyticsEventOrderConfirmed,
	AnalyticsEventOrderCancelled,
	AnalyticsEventPayoutCompleted,
}

func (a AnalyticsEventType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AnalyticsEventType.
func (a AnalyticsEventType) IsValid() bool {
	return slices.Contains(validAnalyticsEventTypes, a)
}

// ParseAnalyticsEventType converts raw input into a AnalyticsEventType.
func ParseAnalyticsEventType(value string) (AnalyticsEventType, error) {
	return parse(value, validAnalyticsEventTypes, "analytics event type")
}
