package types

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// CostPrecision is the number of fractional digits kept for unit costs.
const CostPrecision int32 = 4

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Zero returns zero Money value.
func Zero() Money {
	return decimal.Zero
}

// LineTotal is quantity × unit cost rounded to cost precision.
func LineTotal(q Quantity, unitCost Money) Money {
	return q.Decimal().Mul(unitCost).Round(CostPrecision)
}

// WeightedAverageCost blends the cost of stock on hand with a new receipt.
// When nothing is on hand the new unit cost is returned as is.
func WeightedAverageCost(oldQty Quantity, oldCost Money, newQty Quantity, newCost Money) Money {
	if oldQty <= 0 {
		return newCost.Round(CostPrecision)
	}
	total := oldQty + newQty
	if total <= 0 {
		return newCost.Round(CostPrecision)
	}
	value := oldQty.Decimal().Mul(oldCost).Add(newQty.Decimal().Mul(newCost))
	return value.Div(total.Decimal()).Round(CostPrecision)
}
