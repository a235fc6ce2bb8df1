// Package amount converts category balances between their stored string form
// and decimal values.
package amount

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for every stored amount.
const Scale = 2

var ErrInvalidAmount = errors.New("invalid amount")

// Format renders d with exactly two fractional digits, e.g. "1000.00" or "-300.50".
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

// Parse reads a stored balance. Group separators (spaces, NBSP, currency
// signs) are dropped and a lone comma is read as the decimal point.
// An empty value parses as zero.
func Parse(s string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9', r == '-', r == '+', r == '.', r == ',':
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero, nil
	}

	if strings.Contains(cleaned, ",") {
		if strings.Contains(cleaned, ".") {
			// "1,000.50": comma is a thousands separator
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// MustParse is Parse for values known to be well formed. Unparsable input
// yields zero.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// HasValidScale reports whether d has no more fractional digits than Scale.
func HasValidScale(d decimal.Decimal) bool {
	return d.Equal(d.Round(Scale))
}
