package enums

import "slices"

// LedgerEventType maps to the ledger_event_type enum in Postgres.
type LedgerEventType string

const (
	LedgerEventPaymentCompleted LedgerEventType = "payment_completed"
	LedgerEventPaymentFailed    LedgerEventType = "payment_failed"
	LedgerEventRefundRecorded   LedgerEventType = "refund_recorded"
	LedgerEventPayoutCompleted  LedgerEventType = "payout_completed"
	LedgerEventPayoutFailed     LedgerEventType = "payout_failed"
)

var validLedgerEventTypes = []LedgerEventType{
	LedgerEventPaymentCompleted,
	LedgerEventPaymentFailed,
	LedgerEventRefundRecorded,
	LedgerEventPayoutCompleted,
	LedgerEventPayoutFailed,
}

func (l LedgerEventType) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LedgerEventType.
func (l LedgerEventType) IsValid() bool {
	return slices.Contains(validLedgerEventTypes, l)
}

// ParseLedgerEventType converts raw input into a LedgerEventType.
func ParseLedgerEventType(value string) (LedgerEventType, error) {
	return parse(value, validLedgerEventTypes, "ledger event type")
}
