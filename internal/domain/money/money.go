// Package money implements the accounting core's fixed-point monetary value:
// signed minor units (cents), never floating point, per spec Open Question 2.
// shopspring/decimal is used exclusively at the string-parsing boundary.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrTooManyFractionalDigits is returned by FromDecimalString when the input
// carries more than 2 digits after the decimal point.
var ErrTooManyFractionalDigits = errors.New("money: value has more than 2 fractional digits")

// Money is an immutable signed amount in minor units (cents).
type Money struct {
	cents int64
}

// Zero is the additive identity.
var Zero = Money{}

// FromCents builds a Money directly from minor units.
func FromCents(cents int64) Money {
	return Money{cents: cents}
}

// FromDecimalString parses a decimal string such as "100.00" into Money,
// rejecting more than 2 fractional digits. This is the only point in the
// codebase where shopspring/decimal touches a monetary value; the result is
// converted to int64 cents immediately and the decimal.Decimal is discarded.
func FromDecimalString(s string) (Money, error) {
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("money: invalid decimal %q: %w", s, err)
	}

	if d.Exponent() < -2 {
		return Money{}, ErrTooManyFractionalDigits
	}

	cents := d.Shift(2).Round(0)

	return Money{cents: cents.IntPart()}, nil
}

// Cents returns the underlying minor-unit value.
func (m Money) Cents() int64 {
	return m.cents
}

func (m Money) Add(other Money) Money {
	return Money{cents: m.cents + other.cents}
}

func (m Money) Sub(other Money) Money {
	return Money{cents: m.cents - other.cents}
}

func (m Money) Negate() Money {
	return Money{cents: -m.cents}
}

func (m Money) Abs() Money {
	if m.cents < 0 {
		return Money{cents: -m.cents}
	}
	return m
}

// Mul scales m by an integer factor, used to fan a total out across lines.
func (m Money) Mul(factor int64) Money {
	return Money{cents: m.cents * factor}
}

func (m Money) Compare(other Money) int {
	switch {
	case m.cents < other.cents:
		return -1
	case m.cents > other.cents:
		return 1
	default:
		return 0
	}
}

func (m Money) Equal(other Money) bool {
	return m.cents == other.cents
}

func (m Money) IsZero() bool {
	return m.cents == 0
}

func (m Money) IsPositive() bool {
	return m.cents > 0
}

func (m Money) IsNegative() bool {
	return m.cents < 0
}

// String renders major units for display/logging only — never for storage
// or comparison.
func (m Money) String() string {
	sign := ""
	cents := m.cents

	if cents < 0 {
		sign = "-"
		cents = -cents
	}

	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
