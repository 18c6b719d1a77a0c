// Package money provides an exact two-decimal monetary amount.
package money

import (
	"bytes"
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"

	"movierental/internal/errs"
)

const scale = 2

// Money is an exact amount in a single implied currency, scale 2.
// The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// Zero returns 0.00.
func Zero() Money { return Money{} }

// FromCents builds an amount from minor units.
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -scale)}
}

// Parse reads a decimal string such as "5", "5.5" or "5.50".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", errs.ErrInvalidAmount, s)
	}
	if !d.Equal(d.Round(scale)) {
		return Money{}, fmt.Errorf("%w: %q has fractional cents", errs.ErrInvalidAmount, s)
	}
	return Money{d: d}, nil
}

// MustParse is Parse for constants. It panics on bad input.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// NonNegative rejects negative amounts where a price or fee is required.
func NonNegative(m Money) error {
	if m.IsNegative() {
		return fmt.Errorf("%w: %s is negative", errs.ErrInvalidAmount, m)
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }

// Mul multiplies by a whole number, e.g. a per-day fee by days late.
func (m Money) Mul(n int64) Money { return Money{d: m.d.Mul(decimal.NewFromInt(n))} }

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }
func (m Money) IsZero() bool { return m.d.IsZero() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

// Cents returns the amount in minor units.
func (m Money) Cents() int64 { return m.d.Shift(scale).IntPart() }

// String renders the amount with exactly two decimals.
func (m Money) String() string { return m.d.StringFixed(scale) }

// MarshalJSON encodes the amount as a JSON number such as 5.00.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal string.
func (m *Money) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	parsed, err := Parse(string(bytes.Trim(b, `"`)))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	m.d = d
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
