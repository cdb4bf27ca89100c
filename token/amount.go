package token

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Decimals is the number of fractional digits of one token.
const Decimals = 18

var unit = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(Decimals))

// Tokens returns n whole tokens in base units.
func Tokens(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), unit)
}

// ParseAmount parses a decimal string of base units.
func ParseAmount(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}

// ParseTokens parses a token quantity with up to 18 fractional digits, such
// as "1.4", into base units.
func ParseTokens(s string) (*uint256.Int, error) {
	whole, frac, _ := strings.Cut(strings.TrimSpace(s), ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > Decimals {
		return nil, fmt.Errorf("parse tokens %q: more than %d decimals", s, Decimals)
	}
	v, err := uint256.FromDecimal(whole + frac + strings.Repeat("0", Decimals-len(frac)))
	if err != nil {
		return nil, fmt.Errorf("parse tokens %q: %w", s, err)
	}
	return v, nil
}

// MustTokens is ParseTokens for constants and tests.
func MustTokens(s string) *uint256.Int {
	v, err := ParseTokens(s)
	if err != nil {
		panic(err)
	}
	return v
}

// FormatTokens renders base units as a token quantity without trailing zeros.
func FormatTokens(v *uint256.Int) string {
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(v, unit, r)
	if r.IsZero() {
		return q.Dec()
	}
	frac := r.Dec()
	frac = strings.Repeat("0", Decimals-len(frac)) + frac
	return q.Dec() + "." + strings.TrimRight(frac, "0")
}
