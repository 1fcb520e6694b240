package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Quantity is a fixed-point quantity with 4 decimal places (scale = 1e4).
// Stored as BIGINT (scaled integer); JSON stays a plain number.
type Quantity int64

const QuantityScale int64 = 10_000

// QuantityOne is the default invoice line quantity.
const QuantityOne = Quantity(QuantityScale)

// NewQuantity builds a Quantity from a whole number of units.
func NewQuantity(units int64) Quantity { return Quantity(units * QuantityScale) }

var (
	// ErrQuantityOverflow is returned for quantities that do not fit the scaled int64.
	ErrQuantityOverflow = errors.New("quantity out of range")
	// ErrQuantityPrecision is returned for non-zero quantities that round to zero.
	ErrQuantityPrecision = errors.New("quantity is below 0.0001")
)

// NewQuantityFromDecimal rounds d to 4 decimal places.
func NewQuantityFromDecimal(d decimal.Decimal) (Quantity, error) {
	scaled := d.Shift(4).Round(0)
	if scaled.GreaterThan(maxInt64) || scaled.LessThan(minInt64) {
		return 0, ErrQuantityOverflow
	}
	if scaled.IsZero() && !d.IsZero() {
		return 0, ErrQuantityPrecision
	}
	return Quantity(scaled.IntPart()), nil
}

func (q Quantity) Int64Scaled() int64 { return int64(q) }

func (q Quantity) IsZero() bool     { return q == 0 }
func (q Quantity) IsPositive() bool { return q > 0 }

// Decimal returns the quantity as an exact decimal.
func (q Quantity) Decimal() decimal.Decimal {
	return decimal.New(int64(q), -4)
}

// String returns a decimal string with 4 fractional digits.
func (q Quantity) String() string {
	return q.Decimal().StringFixed(4)
}

// MarshalJSON encodes Quantity as a JSON number without trailing zeros.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(q.Decimal().String()), nil
}

// UnmarshalJSON accepts either a JSON number or a numeric string.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*q = 0
		return nil
	}

	s := string(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}

	parsed, err := ParseQuantity(s)
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}

// ParseQuantity parses a decimal string, rounding to 4 fractional digits.
func ParseQuantity(s string) (Quantity, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty quantity")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity: %w", err)
	}
	q, err := NewQuantityFromDecimal(d)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return q, nil
}
