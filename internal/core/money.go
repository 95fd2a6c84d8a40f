// Package core provides money parsing and handling utilities.
//
// Amounts are carried as float64 through the calculation, matching how
// statements are summed. Parsing and display go through shopspring/decimal so
// that string conversion and rounding are exact.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// SettledEpsilon is the tolerance under which two amounts are considered equal.
const SettledEpsilon = 0.01

// ParseAmount converts a bank-formatted amount to a signed float64.
//
// Currency symbols, letters and spaces are ignored. Both "1.234,56" and
// "1,234.56" are understood: when both separators appear the last one is the
// decimal separator. A lone comma is a decimal separator unless it is followed
// by exactly three digits. Parentheses and a trailing minus mark negatives.
//
// Examples:
//
//	ParseAmount("12,34")      -> 12.34
//	ParseAmount("1.234,56 €") -> 1234.56
//	ParseAmount("(45.00)")    -> -45
//	ParseAmount("$1,200")     -> 1200
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' || r == '−':
			negative = !negative
		case r == '+':
		}
	}
	cleaned := normalizeSeparators(b.String())
	if cleaned == "" || cleaned == "." {
		return 0, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if negative {
		d = d.Neg()
	}
	return d.InexactFloat64(), nil
}

func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		return strings.ReplaceAll(s, ".", "")
	default:
		return s
	}
}

// Round2 rounds half away from zero to two decimal places for display.
func Round2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}

// FormatAmount renders x with exactly two decimals, e.g. "1234.50".
func FormatAmount(x float64) string {
	return decimal.NewFromFloat(x).StringFixed(2)
}

// NearlyEqual reports whether a and b differ by less than SettledEpsilon.
func NearlyEqual(a, b float64) bool {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Abs().
		LessThan(decimal.NewFromFloat(SettledEpsilon))
}
