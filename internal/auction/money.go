package auction

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest price in cents. Prices travel as protobuf Struct
// numbers (float64) in events and RPC, which are exact only up to 2^53.
const MaxAmount int64 = 1 << 53

// ErrInvalidAmount is returned for prices that are malformed, negative or above MaxAmount
var ErrInvalidAmount = errors.New("amount must be a non-negative number with at most two decimals")

// amountPattern accepts plain decimals only: no sign, exponent or trailing dot
var amountPattern = regexp.MustCompile(`^[0-9]*(\.[0-9]{1,2})?$`)

var maxAmount = decimal.New(MaxAmount, -2)

// ParseAmount converts a decimal string such as "12.5" or "12.50" into cents.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || !amountPattern.MatchString(s) {
		return 0, ErrInvalidAmount
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if d.IsNegative() || d.Exponent() < -2 || d.GreaterThan(maxAmount) {
		return 0, ErrInvalidAmount
	}
	return d.Shift(2).IntPart(), nil
}

// FormatAmount renders cents as a decimal with two places, e.g. 1250 -> "12.50".
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
