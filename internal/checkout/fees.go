package checkout

import "github.com/shopspring/decimal"

const basisPoints = 10000

// SplitFee applies the platform fee in basis points to gross, rounding half to even.
func SplitFee(gross, feeBps int64) (fee, net int64) {
	if gross <= 0 || feeBps <= 0 {
		return 0, gross
	}
	fee = decimal.NewFromInt(gross).
		Mul(decimal.NewFromInt(feeBps)).
		Div(decimal.NewFromInt(basisPoints)).
		RoundBank(0).
		IntPart()
	return fee, gross - fee
}
