package types

import "github.com/shopspring/decimal"

// All monetary and point amounts in Loyalty are decimals with two fractional
// digits. Rounding is always half-away-from-zero, which is what
// decimal.Round implements, so validation-time and apply-time figures can
// never drift.

// MoneyScale is the number of fractional digits kept on every amount.
const MoneyScale = 2

// Round normalizes an amount to the canonical two-decimal-place scale.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// Dec parses a decimal literal and panics on malformed input.
// Use for constants in configuration and tests, never for caller input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DecZero is the zero amount.
func DecZero() decimal.Decimal {
	return decimal.Zero
}

// MinDec returns the smaller of two amounts.
func MinDec(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
