package validation

import (
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func MinLen(field, value string, n int, v Violations) {
	if len(value) < n {
		v[field] = "too_short"
	}
}

// OneOf checks value against an allowed label set.
func OneOf(field, value string, allowed []string, v Violations) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v[field] = "invalid_choice"
}

// FileExtension checks the filename extension against a whitelist of
// lowercase dotted extensions (".pdf", ".png", ...).
func FileExtension(field, filename string, allowed []string, v Violations) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, a := range allowed {
		if ext == a {
			return
		}
	}
	v[field] = "unsupported_file_extension"
}

// maxAmount is 10^8: with 2 fractional digits a 10-digit decimal caps the
// integer part at 8 digits.
var maxAmount = decimal.NewFromInt(100000000)

// Amount parses a fixed-point amount with at most 2 fractional digits and 10
// digits total. On violation the field is recorded and the zero decimal
// returned.
func Amount(field, value string, v Violations) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		v[field] = "invalid_decimal"
		return decimal.Zero
	}
	if d.Exponent() < -2 {
		v[field] = "too_many_decimal_places"
		return decimal.Zero
	}
	if !d.IsPositive() {
		v[field] = "must_be_positive"
		return decimal.Zero
	}
	if !d.Abs().LessThan(maxAmount) {
		v[field] = "out_of_range"
		return decimal.Zero
	}
	return d
}
