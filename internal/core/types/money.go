// Package types provides the numeric value types shared by the ledger and billing engines.
package types

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// ErrAmountOverflow is returned when an amount does not fit in int64 minor units.
var ErrAmountOverflow = errors.New("amount out of range")

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(math.MinInt64)
)

// MinorUnits represents a monetary value in minor currency units (centavos).
// Storage: int64 (BIGINT).
type MinorUnits int64

func (m MinorUnits) IsZero() bool     { return m == 0 }
func (m MinorUnits) IsNegative() bool { return m < 0 }

// Decimal returns the amount as an exact decimal.
func (m MinorUnits) Decimal() decimal.Decimal {
	return decimal.NewFromInt(int64(m))
}

// MinorUnitsFromDecimal rounds d half away from zero to whole minor units.
func MinorUnitsFromDecimal(d decimal.Decimal) (MinorUnits, error) {
	rounded := d.Round(0)
	if rounded.GreaterThan(maxInt64) || rounded.LessThan(minInt64) {
		return 0, ErrAmountOverflow
	}
	return MinorUnits(rounded.IntPart()), nil
}

// MulQuantity returns m × q rounded half away from zero to whole minor units.
func (m MinorUnits) MulQuantity(q Quantity) (MinorUnits, error) {
	return MinorUnitsFromDecimal(m.Decimal().Mul(q.Decimal()))
}

// Sum adds amounts, failing instead of wrapping around.
func Sum(amounts ...MinorUnits) (MinorUnits, error) {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.Decimal())
	}
	return MinorUnitsFromDecimal(total)
}
