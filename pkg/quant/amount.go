package quant

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmountLen caps the length of a typed amount in its canonical spelling:
// separators stripped, a leading '.' written as "0." and a '+' sign dropped.
// Exponent notation is rejected for the same reason: a short token must not
// expand into an arbitrarily large decimal. Any accepted value prints back
// within the cap, so its String form always parses again.
const MaxAmountLen = 40

var (
	ErrEmptyAmount     = errors.New("empty amount")
	ErrMalformedAmount = errors.New("malformed amount")
)

// ParseAmount parses a human-typed number such as "1,250.75" or ".5".
// Commas are thousands separators and are dropped before parsing.
// Accepted shape: optional sign, digits with at most one '.'.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}
	if !isPlainDecimal(s) || len(canonical(s)) > MaxAmountLen {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedAmount, s)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrMalformedAmount, err)
	}
	return d, nil
}

// ParsePositiveAmount is ParseAmount restricted to values > 0.
// Order sizes go through here; anything else reports ok=false.
func ParsePositiveAmount(s string) (decimal.Decimal, bool) {
	d, err := ParseAmount(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// FormatMoney renders a currency amount with two decimals.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// canonical spells a plain decimal the way decimal.String would before
// trimming zeros. Expects isPlainDecimal(s).
func canonical(s string) string {
	sign := ""
	switch s[0] {
	case '-':
		sign, s = "-", s[1:]
	case '+':
		s = s[1:]
	}
	if s[0] == '.' {
		s = "0" + s
	}
	return sign + s
}

func isPlainDecimal(s string) bool {
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
