package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point conventions for the engine
// =============================================================================
//
// All accumulation runs at full decimal precision. Rounding to 2 decimal
// places happens exactly once per value, at the persistence or serialization
// boundary. Running sums feeding day N+1 always use the unrounded value, so
// rounding error never compounds.

// RoundMoney rounds a currency amount to 2 decimal places, half away from
// zero (round-half-up for the non-negative amounts this engine produces).
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RatePercent expresses a daily rate as a percentage for reporting (rate x 100).
func RatePercent(rate decimal.Decimal) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(100))
}

// MustDecimal parses a decimal literal, returning zero on malformed input.
// Intended for constants and seed data, not user input.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
