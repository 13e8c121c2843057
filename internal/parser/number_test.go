package parser

import (
	"testing"

	"github.com/shopspring/decimal"
)

func mustDec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad fixture %q: %v", s, err)
	}
	return d
}

func TestParseSpanishNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.605,90", "1605.90"},
		{"630,00", "630.00"},
		{"14,24", "14.24"},
		{"15.000,00 €", "15000.00"},
		{"1.234.567,89", "1234567.89"},
		{"1.234.567", "1234567"},
		{"150", "150"},
		{"0,5", "0.5"},
		{"1234.56", "1234.56"},
		{"  3.750,00€ ", "3750.00"},
	}
	for _, tc := range cases {
		got, err := ParseSpanishNumber(tc.in)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tc.in, err)
			continue
		}
		if !got.Equal(mustDec(t, tc.want)) {
			t.Errorf("%q: expected %s, got %s", tc.in, tc.want, got)
		}
	}
}

func TestParseSpanishNumber_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "12,34,56"} {
		if _, err := ParseSpanishNumber(in); err == nil {
			t.Errorf("%q: expected error", in)
		}
	}
}
