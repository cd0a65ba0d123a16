package ledger

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// reAmount accepts plain or comma-grouped currency text with at most two
// fraction digits, e.g. "100", "1,250.50", "0.99".
var reAmount = regexp.MustCompile(`^(\d{1,3}(,\d{3})*(\.\d{1,2})?|\d+(\.\d{1,2})?)$`)

// ParseAmount converts raw text from an input surface into a validated
// amount. Malformed or non-positive text fails with ErrInvalidAmount so the
// core's deposit/withdraw signatures stay free of parse concerns.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if !reAmount.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return d, nil
}

// FormatAmount renders an amount with 2-digit display precision.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
