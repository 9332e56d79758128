package stoploss

import (
	"math"

	"github.com/shopspring/decimal"
)

var decimalZero = decimal.Zero

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimalZero
	}
	return decimal.NewFromFloat(val)
}

func decToFloat(val decimal.Decimal) float64 {
	f, _ := val.Float64()
	return f
}

func decimalCompare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

func decimalGTE(a, b float64) bool { return decimalCompare(a, b) >= 0 }
func decimalLT(a, b float64) bool  { return decimalCompare(a, b) < 0 }

// relativeOffset converts a stop price into an offset from the entry
// price: stop/entry - 1. Negative below entry, positive above.
func relativeOffset(entry, stopPrice float64) float64 {
	if entry <= 0 || stopPrice <= 0 {
		return 0
	}
	return decToFloat(decFromFloat(stopPrice).Div(decFromFloat(entry)).Sub(decimal.NewFromInt(1)))
}
