package enums

import "slices"

// PayoutDestinationType is the kind of account a seller withdraws to.
type PayoutDestinationType string

const (
	PayoutDestinationBankAccount  PayoutDestinationType = "bank_account"
	PayoutDestinationMobileWallet PayoutDestinationType = "mobile_wallet"
)

var validPayoutDestinationTypes = []PayoutDestinationType{
	PayoutDestinationBankAccount,
	PayoutDestinationMobileWallet,
}

func (p PayoutDestinationType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PayoutDestinationType.
func (p PayoutDestinationType) IsValid() bool {
	return slices.Contains(validPayoutDestinationTypes, p)
}

// ParsePayoutDestinationType converts raw input into a PayoutDestinationType.
func ParsePayoutDestinationType(value string) (PayoutDestinationType, error) {
	return parse(value, validPayoutDestinationTypes, "payout destination type")
}
