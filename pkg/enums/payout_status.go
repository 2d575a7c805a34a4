package enums

import "slices"

// PayoutStatus tracks how much of an order's seller net has been transferred out.
type PayoutStatus string

const (
	PayoutStatusNone    PayoutStatus = "none"
	PayoutStatusReady   PayoutStatus = "ready"
	PayoutStatusPartial PayoutStatus = "partial"
	PayoutStatusPaid    PayoutStatus = "paid"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusNone,
	PayoutStatusReady,
	PayoutStatusPartial,
	PayoutStatusPaid,
}

func (p PayoutStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutStatus.
func (p PayoutStatus) IsValid() bool {
	return slices.Contains(validPayoutStatuses, p)
}

// ParsePayoutStatus converts raw input into a PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	return parse(value, validPayoutStatuses, "payout status")
}

var payoutStatusRank = map[PayoutStatus]int{
	PayoutStatusNone:    0,
	PayoutStatusReady:   1,
	PayoutStatusPartial: 2,
	PayoutStatusPaid:    3,
}

// Rank orders the statuses; payout progress may only move to a higher rank.
func (p PayoutStatus) Rank() int {
	if p == "" {
		return 0
	}
	return payoutStatusRank[p]
}

// CanAdvanceTo reports whether next is a legal forward move from p.
// partial -> partial is allowed because the paid-out accumulator grows.
func (p PayoutStatus) CanAdvanceTo(next PayoutStatus) bool {
	if !next.IsValid() {
		return false
	}
	if p == PayoutStatusPartial && next == PayoutStatusPartial {
		return true
	}
	return next.Rank() > p.Rank()
}

// Withdrawable reports whether an order in this status can still feed a payout.
func (p PayoutStatus) Withdrawable() bool {
	return p == PayoutStatusNone || p == PayoutStatusReady || p == PayoutStatusPartial || p == ""
}
