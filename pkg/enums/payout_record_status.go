package enums

import "slices"

// PayoutRecordStatus tracks a single withdrawal request against the transfer gateway.
type PayoutRecordStatus string

const (
	PayoutRecordProcessing PayoutRecordStatus = "processing"
	PayoutRecordCompleted  PayoutRecordStatus = "completed"
	PayoutRecordFailed     PayoutRecordStatus = "failed"
)

var validPayoutRecordStatuses = []PayoutRecordStatus{
	PayoutRecordProcessing,
	PayoutRecordCompleted,
	PayoutRecordFailed,
}

func (p PayoutRecordStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutRecordStatus.
func (p PayoutRecordStatus) IsValid() bool {
	return slices.Contains(validPayoutRecordStatuses, p)
}

// ParsePayoutRecordStatus converts raw input into a PayoutRecordStatus.
func ParsePayoutRecordStatus(value string) (PayoutRecordStatus, error) {
	return parse(value, validPayoutRecordStatuses, "payout record status")
}
