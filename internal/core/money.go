// Package core provides the ledger's domain types and pure computations.
//
// This file contains the Amount type: an exact decimal magnitude that
// serializes as a plain JSON number.
package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// AmountPlaces is the number of fractional digits kept for entered amounts.
const AmountPlaces = 2

// Bounds on amount magnitude. Integer digits stay within what float64 holds
// exactly; the exponent bounds keep rounding from expanding huge numbers.
const (
	MaxIntegerDigits = 15
	minExponent      = -64
	maxInputLen      = 64
)

// ErrAmbiguousAmount marks input such as "1,000" where a comma could be a
// thousands separator rather than a decimal one.
var ErrAmbiguousAmount = fmt.Errorf("%w: comma before three digits is ambiguous", ErrInvalidAmount)

// Amount wraps decimal.Decimal so sums never drift the way float64 does.
type Amount struct {
	decimal.Decimal
}

// Zero is the additive identity, also the value of an empty total.
var Zero = Amount{decimal.Zero}

// NewAmount builds an amount from an integer number of currency units.
func NewAmount(units int64) Amount {
	return Amount{decimal.NewFromInt(units)}
}

// ParseAmount converts user input to an Amount.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and
// rounds half away from zero to two fractional digits. A single comma
// followed by exactly three digits is rejected as ambiguous. Anything that
// is not a finite decimal number, including NaN and Inf spellings and
// values with more than MaxIntegerDigits integer digits, yields
// ErrInvalidAmount. Negative values yield ErrNegativeAmount.
//
// Examples:
//
//	ParseAmount("50000")   -> 50000
//	ParseAmount("12,34")   -> 12.34
//	ParseAmount("12.345")  -> 12.35
//	ParseAmount("1,000")   -> ErrAmbiguousAmount
//	ParseAmount("1e400")   -> ErrInvalidAmount
//	ParseAmount("-1")      -> ErrNegativeAmount
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxInputLen {
		return Amount{}, ErrInvalidAmount
	}
	// Normalize decimal comma to dot
	if !strings.Contains(s, ".") {
		if i := strings.IndexByte(s, ','); i >= 0 && strings.Count(s, ",") == 1 && isDigits(s[i+1:], 3) {
			return Amount{}, ErrAmbiguousAmount
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, ErrInvalidAmount
	}
	if err := checkMagnitude(d); err != nil {
		return Amount{}, err
	}
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}
	return Amount{d.Round(AmountPlaces)}, nil
}

// checkMagnitude rejects values too large to be an amount, and exponents
// that would make rounding or comparison expensive. It never rescales d.
func checkMagnitude(d decimal.Decimal) error {
	exp := int64(d.Exponent())
	if exp < minExponent || int64(d.NumDigits())+exp > MaxIntegerDigits {
		return ErrInvalidAmount
	}
	return nil
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (a Amount) Add(b Amount) Amount { return Amount{a.Decimal.Add(b.Decimal)} }
func (a Amount) Sub(b Amount) Amount { return Amount{a.Decimal.Sub(b.Decimal)} }
func (a Amount) Neg() Amount         { return Amount{a.Decimal.Neg()} }

func (a Amount) Equal(b Amount) bool { return a.Decimal.Equal(b.Decimal) }

// MarshalJSON writes the amount as a bare number.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts both numbers and quoted decimal strings.
func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	if err := checkMagnitude(d); err != nil {
		return fmt.Errorf("amount %.20s: %w", b, err)
	}
	a.Decimal = d
	return nil
}
