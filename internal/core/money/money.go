// Package money converts between whole rupees, which bookings are priced in,
// and paise, which the ledger and the gateway exchange.
package money

import (
	"github.com/shopspring/decimal"
)

const MinorPerMajor = 100

var hundred = decimal.NewFromInt(MinorPerMajor)

// ToMinor converts rupees to paise.
func ToMinor(major int64) int64 {
	return decimal.NewFromInt(major).Mul(hundred).IntPart()
}

// ToMajor converts paise to rupees, rounding half away from zero.
func ToMajor(minor int64) int64 {
	return decimal.NewFromInt(minor).Div(hundred).Round(0).IntPart()
}
