// Package core provides money parsing and handling utilities.
//
// Amounts are kept as integer cents. Decimal text coming from forms, CSV files
// or spreadsheets is parsed with shopspring/decimal and rounded half away from
// zero to two places.
package core

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// maxAmount keeps cents arithmetic (including the x10 status thresholds) far
// from int64 overflow.
var maxAmount = decimal.New(1, 12)

// Money is an amount in cents. It may be negative (remaining amounts are).
type Money struct {
	Cents int64
}

// ParseAmount parses a decimal string into Money.
//
// A comma is a decimal separator only when it is the sole separator and is
// followed by one or two digits. Otherwise commas must group the integer part
// in threes, as Display writes them. The result is rounded to the nearest cent:
//
//	ParseAmount("12.34")    -> 1234
//	ParseAmount("12,34")    -> 1234
//	ParseAmount("1,500")    -> 150000
//	ParseAmount("1,500.00") -> 150000
//	ParseAmount("-3")       -> -300
func ParseAmount(s string) (Money, error) {
	s, ok := normalizeSeparators(strings.TrimSpace(s))
	if !ok || s == "" {
		return Money{}, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.Abs().GreaterThan(maxAmount) {
		return Money{}, ErrInvalidAmount
	}
	return FromDecimal(d), nil
}

// normalizeSeparators rewrites s into the plain dot-decimal form understood
// by decimal.NewFromString. It reports false for misplaced commas.
func normalizeSeparators(s string) (string, bool) {
	if !strings.Contains(s, ",") {
		return s, true
	}
	intPart, frac, hasDot := strings.Cut(s, ".")
	if strings.Contains(frac, ",") {
		return "", false
	}
	if !hasDot && strings.Count(s, ",") == 1 {
		_, after, _ := strings.Cut(s, ",")
		if len(after) == 1 || len(after) == 2 {
			return strings.Replace(s, ",", ".", 1), true
		}
	}

	digits := strings.TrimLeft(intPart, "+-")
	groups := strings.Split(digits, ",")
	if len(groups[0]) < 1 || len(groups[0]) > 3 {
		return "", false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return "", false
		}
	}
	out := strings.ReplaceAll(intPart, ",", "")
	if hasDot {
		out += "." + frac
	}
	return out, true
}

// FromDecimal converts a decimal amount to cents. Amounts beyond the
// accepted range are clamped to it.
func FromDecimal(d decimal.Decimal) Money {
	switch {
	case d.GreaterThan(maxAmount):
		d = maxAmount
	case d.LessThan(maxAmount.Neg()):
		d = maxAmount.Neg()
	}
	return Money{Cents: d.Round(2).Shift(2).IntPart()}
}

// FromFloat converts a float amount (as found in loosely typed documents) to
// cents. NaN counts as zero and infinities are clamped.
func FromFloat(f float64) Money {
	switch {
	case math.IsNaN(f):
		return Money{}
	case math.IsInf(f, 1):
		return FromDecimal(maxAmount)
	case math.IsInf(f, -1):
		return FromDecimal(maxAmount.Neg())
	}
	return FromDecimal(decimal.NewFromFloat(f))
}

// FromInt converts a whole amount to cents, clamped like FromDecimal.
func FromInt(n int64) Money {
	return FromDecimal(decimal.NewFromInt(n))
}

// Decimal returns the amount as a decimal value.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// Float returns the amount as float64 for storage documents and charts.
// Use cents for calculations.
func (m Money) Float() float64 {
	return m.Decimal().InexactFloat64()
}

// String returns the plain two-decimal representation, e.g. "1234.50".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Display formats the amount with thousands separators, e.g. "1,234.50".
func (m Money) Display() string {
	s := m.String()
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		return "-" + out
	}
	return out
}

// Add returns m + o.
func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }

// Sub returns m - o.
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.Cents == 0 }
