// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals. On the wire they travel as JSON numbers, but
// browser forms submit text, so decoding accepts quoted numbers too.
package core

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts outside these bounds are rejected as ErrInvalidAmount; an
// unbounded exponent would expand to megabytes when rendered.
const (
	maxExponent = 18
	maxDigits   = 30
)

// Money is an exact decimal amount.
type Money struct {
	d decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

// MoneyFromFloat converts a float literal (e.g. 4.5) to Money.
func MoneyFromFloat(f float64) Money {
	return Money{d: decimal.NewFromFloat(f)}
}

// ParseMoney converts user text to Money.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and a
// leading sign. Empty input is zero, the reset value of every amount field.
//
// Examples:
//
//	ParseMoney("4.5")   -> 4.5, nil
//	ParseMoney("12,34") -> 12.34, nil
//	ParseMoney("")      -> 0, nil
//	ParseMoney("abc")   -> 0, ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.Count(s, ".") > 1 {
		return Money{}, ErrInvalidAmount
	}
	return fromDecimalString(s)
}

func fromDecimalString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return Money{}, ErrInvalidAmount
	}
	if d.NumDigits() > maxDigits {
		return Money{}, ErrInvalidAmount
	}
	return Money{d: d}, nil
}

// Decimal returns the underlying decimal value.
func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// Equal reports whether both amounts are numerically equal.
func (m Money) Equal(o Money) bool {
	return m.d.Equal(o.d)
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool {
	return m.d.IsZero()
}

// String renders the shortest exact representation ("4.5", "12", "-3.25").
func (m Money) String() string {
	return m.d.String()
}

// MarshalJSON encodes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

// UnmarshalJSON accepts a JSON number, a quoted number or null.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = Money{}
		return nil
	}
	if b[0] == '"' {
		s, err := strconv.Unquote(string(b))
		if err != nil {
			return ErrInvalidAmount
		}
		parsed, err := ParseMoney(s)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	parsed, err := fromDecimalString(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
