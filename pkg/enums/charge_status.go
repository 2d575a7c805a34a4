package enums

import "slices"

// ChargeStatus is the gateway-neutral state of an external charge.
type ChargeStatus string

const (
	ChargeStatusPending    ChargeStatus = "pending"
	ChargeStatusSuccessful ChargeStatus = "successful"
	ChargeStatusFailed     ChargeStatus = "failed"
	ChargeStatusExpired    ChargeStatus = "expired"
)

var validChargeStatuses = []ChargeStatus{
	ChargeStatusPending,
	ChargeStatusSuccessful,
	ChargeStatusFailed,
	ChargeStatusExpired,
}

func (c ChargeStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ChargeStatus.
func (c ChargeStatus) IsValid() bool {
	return slices.Contains(validChargeStatuses, c)
}

// ParseChargeStatus converts raw input into a ChargeStatus.
func ParseChargeStatus(value string) (ChargeStatus, error) {
	return parse(value, validChargeStatuses, "charge status")
}

// IsTerminal reports whether the gateway will not report further changes.
func (c ChargeStatus) IsTerminal() bool {
	return c == ChargeStatusSuccessful || c == ChargeStatusFailed || c == ChargeStatusExpired
}
