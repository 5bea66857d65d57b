// Package core provides money parsing and handling utilities.
//
// Amounts are exact decimals backed by shopspring/decimal. They are parsed from
// text at the edges and serialized back to text at the storage boundary; no
// amount ever passes through a binary floating-point value.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount. The zero value is 0.
type Money struct {
	d decimal.Decimal
}

// NewMoney wraps a decimal value.
func NewMoney(d decimal.Decimal) Money {
	return Money{d: d}
}

// ParseDecimal converts a decimal string to an exact, non-negative Money value.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators. Signs are
// rejected: the direction of a transaction is carried by its type.
//
// Examples:
//
//	ParseDecimal("12.34") -> 12.34, nil
//	ParseDecimal("12,34") -> 12.34, nil
//	ParseDecimal("0")     -> 0, nil
//	ParseDecimal("-1")    -> error
func ParseDecimal(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, Invalid("amount", ErrInvalidAmount)
	}
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Money{}, Invalid("amount", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return Money{}, Invalid("amount", ErrInvalidAmount)
	}
	return Money{d: d}, nil
}

// ParseAmount is ParseDecimal restricted to strictly positive values, the rule
// for transaction amounts.
func ParseAmount(s string) (Money, error) {
	m, err := ParseDecimal(s)
	if err != nil {
		return Money{}, err
	}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// MustParseMoney is ParseDecimal that panics on error. Meant for literals.
func MustParseMoney(s string) Money {
	m, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Validate reports whether m is a valid transaction amount (> 0).
func (m Money) Validate() error {
	if !m.d.IsPositive() {
		return Invalid("amount", ErrInvalidAmount)
	}
	return nil
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Cmp compares m and o: -1 if m < o, 0 if equal, +1 if m > o.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

// Equal compares numerically, so 10.1 equals 10.10.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) IsZero() bool     { return m.d.IsZero() }
func (m Money) IsPositive() bool { return m.d.IsPositive() }
func (m Money) IsNegative() bool { return m.d.IsNegative() }

// NonNegative returns m, or zero when m is negative.
func (m Money) NonNegative() Money {
	if m.d.IsNegative() {
		return Money{}
	}
	return m
}

// Decimal exposes the underlying decimal for arithmetic not covered here.
func (m Money) Decimal() decimal.Decimal { return m.d }

// String returns the exact value without trailing formatting, the storage form.
func (m Money) String() string { return m.d.String() }

// Display returns the value with two fractional digits for user interfaces.
func (m Money) Display() string { return m.d.StringFixed(2) }

// MarshalJSON encodes the amount as a quoted decimal string.
func (m Money) MarshalJSON() ([]byte, error) {
	return m.d.MarshalJSON()
}

// UnmarshalJSON accepts both quoted strings and bare JSON numbers, so documents
// written by older versions that stored plain numbers still load exactly.
func (m *Money) UnmarshalJSON(b []byte) error {
	return m.d.UnmarshalJSON(b)
}
