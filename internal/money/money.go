package money

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MaxScale and MaxAmount match the NUMERIC(20,4) columns holding amounts:
// four fractional digits and sixteen integer digits.
const MaxScale = 4

var MaxAmount = decimal.New(1, 16)

var (
	ErrNonPositive     = errors.New("amount must be greater than zero")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
	ErrTooLarge        = errors.New("amount is too large")
)

// Positive validates a movement amount: strictly positive and representable in storage.
func Positive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositive
	}
	if amount.GreaterThanOrEqual(MaxAmount) {
		return ErrTooLarge
	}
	return checkScale(amount)
}

// Format renders an amount at storage precision, so no stored digit is rounded away.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(MaxScale)
}

func checkScale(amount decimal.Decimal) error {
	if amount.Exponent() >= -MaxScale {
		return nil
	}
	// 1.50000 has exponent -5 but is still exact at scale 4.
	if amount.Equal(amount.Truncate(MaxScale)) {
		return nil
	}
	return ErrTooManyDecimals
}
