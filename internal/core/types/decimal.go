// Package types provides the money type used on document lines.
package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value or quantity with full precision.
type Money = decimal.Decimal

// MoneyScale is the number of fraction digits kept on totals.
const MoneyScale int32 = 2

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// LineAmount multiplies quantity by rate and rounds half away from zero to MoneyScale.
func LineAmount(quantity, rate Money) Money {
	return quantity.Mul(rate).Round(MoneyScale)
}

// Sum adds amounts.
func Sum(amounts ...Money) Money {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
