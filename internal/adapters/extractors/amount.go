package extractors

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// AmountFromDigits keeps only digits and decimal points in s and parses the
// result, so "₱1,234.50" and "PHP 1234.50" both give 1234.50.
func AmountFromDigits(s string) (decimal.Decimal, bool) {
	kept := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '.' {
			return r
		}
		return -1
	}, s)
	return ParseAmount(kept)
}

// ParseAmount parses a numeric string after removing thousands separators
// and stray leading or trailing decimal points.
func ParseAmount(s string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Abs(), true
}

// CentsFromDigits keeps only the digits in s and reads them as a fixed-point
// amount with two implied decimals: "000150000" is 1500.00.
func CentsFromDigits(s string) (decimal.Decimal, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, false
	}
	return d.Shift(-2), true
}
