package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var ErrInvalidAmount = errors.New("invalid amount")

var hundred = big.NewRat(100, 1)

// ToMinorUnits converts a decimal price (as sent by the backend) to integer minor
// currency units. The conversion is exact: 499 -> 49900, 19.99 -> 1999. Negative
// prices, fractions of a minor unit and values beyond int64 are rejected.
func ToMinorUnits(price json.Number) (int64, error) {
	raw := strings.TrimSpace(price.String())
	if raw == "" {
		return 0, nil
	}
	r, ok := new(big.Rat).SetString(raw)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if r.Sign() < 0 {
		return 0, fmt.Errorf("%w: negative price %q", ErrInvalidAmount, raw)
	}
	r.Mul(r, hundred)
	if !r.IsInt() {
		return 0, fmt.Errorf("%w: %q has more than two decimals", ErrInvalidAmount, raw)
	}
	n := r.Num()
	if !n.IsInt64() {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidAmount, raw)
	}
	return n.Int64(), nil
}

// FormatMinorUnits renders minor units as a two-decimal string.
func FormatMinorUnits(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
