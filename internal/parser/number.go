package parser

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseSpanishNumber converts a Spanish-format number ("1.605,90",
// "630,00", "14,24") to a decimal. Dots are thousands separators, the
// comma is the decimal mark. Plain "1234" and "1234.56" also parse, since
// some exports use English formatting.
func ParseSpanishNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "€"))
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else if dots := strings.Count(s, "."); dots > 1 {
		// Multiple dots with no comma: all thousands separators.
		s = strings.ReplaceAll(s, ".", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse number %q: %w", s, err)
	}
	return d, nil
}
