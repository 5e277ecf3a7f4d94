package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyAmount is returned when an amount token is blank.
	ErrEmptyAmount = errors.New("empty amount")
	// ErrInvalidAmount is returned when an amount token does not decode to a number.
	ErrInvalidAmount = errors.New("invalid amount")
)

// ParseAmount converts a statement amount such as "1.234,56", "1,234.56" or
// "-32,00" to a decimal. The separator closest to the end of the token is the
// decimal separator; every other '.' or ',' is a thousands separator.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart, fracPart := s, ""
	if pos := strings.LastIndexAny(s, ".,"); pos >= 0 {
		intPart, fracPart = s[:pos], s[pos+1:]
	}
	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)

	if !allDigits(intPart) || !allDigits(fracPart) || intPart+fracPart == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	cleaned := intPart
	if cleaned == "" {
		cleaned = "0"
	}
	if fracPart != "" {
		cleaned += "." + fracPart
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// FormatAmount renders an amount in the canonical statement form: two
// decimals, comma as decimal separator, no grouping ("-1234,56").
func FormatAmount(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
