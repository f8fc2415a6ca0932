package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point decimal amount. Persistence uses numeric(14,2).
type Money = decimal.Decimal

// MoneyFromString parses a decimal amount, rejecting negatives.
func MoneyFromString(value string) (Money, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}

// MoneyFromInt builds an amount from whole currency units.
func MoneyFromInt(value int64) Money {
	return decimal.NewFromInt(value)
}

// LineTotal multiplies a unit price by a quantity.
func LineTotal(unitPrice Money, qty int) Money {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}

// SplitPercent returns (share, remainder) of amount at pct percent, rounded to
// two decimal places with the remainder absorbing the rounding difference.
func SplitPercent(amount Money, pct int) (Money, Money) {
	share := amount.
		Mul(decimal.NewFromInt(int64(pct))).
		Div(decimal.NewFromInt(100)).
		Round(2)
	return share, amount.Sub(share)
}
