package pricing

import (
	"math"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest converted amount Compute accepts for the item price
// or shipping. Every derived total stays well inside int64 below it.
const MaxAmount Money = 1_000_000_000_000_000

var maxAmount = decimal.NewFromInt(MaxAmount)

// Round rounds to the nearest whole unit, halves away from zero.
func Round(d decimal.Decimal) Money {
	return d.Round(0).IntPart()
}

// RoundFloat applies Round to a float64 using its shortest decimal
// representation, so 2.675 is treated as exactly 2.675 rather than its binary
// approximation. Non-finite values round to zero.
func RoundFloat(f float64) Money {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return Round(decimal.NewFromFloat(f))
}

// Convert multiplies a foreign-currency amount by rate and rounds the product
// to whole local units. Use ConvertWithin when the product may be large.
func Convert(amount, rate float64) Money {
	m, _ := ConvertWithin(amount, rate)
	return m
}

// ConvertWithin is Convert with a bounds check: ok is false, and the amount
// zero, when an operand is not finite or the rounded product lies outside
// [-MaxAmount, MaxAmount].
func ConvertWithin(amount, rate float64) (m Money, ok bool) {
	if math.IsNaN(amount) || math.IsNaN(rate) || math.IsInf(amount, 0) || math.IsInf(rate, 0) {
		return 0, false
	}
	product := decimal.NewFromFloat(amount).Mul(decimal.NewFromFloat(rate)).Round(0)
	if product.Abs().GreaterThan(maxAmount) {
		return 0, false
	}
	return product.IntPart(), true
}
