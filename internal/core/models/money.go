package models

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// The ledger keeps a single currency. Amounts are stored in minor units (cents).
const (
	MinorUnits = 2
	// MaxAmount is 999 999 999.99 in minor units.
	MaxAmount int64 = 99_999_999_999

	maxIntegerDigits = 9
)

var (
	ErrAmountNotPositive = errors.New("amount must be positive")
	ErrAmountPrecision   = errors.New("amount has more than 2 fractional digits")
	ErrAmountTooLarge    = errors.New("amount exceeds supported maximum")
)

// ToMinorUnits converts a decimal amount into minor units without rounding.
// Scale and magnitude are checked on the coefficient digits so that values
// like 1e20000000 are rejected without being expanded.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrAmountNotPositive
	}

	digits := amount.Coefficient().String()
	trimmed := strings.TrimRight(digits, "0")
	exp := int64(amount.Exponent()) + int64(len(digits)-len(trimmed))

	if exp < -MinorUnits {
		return 0, ErrAmountPrecision
	}
	if int64(len(trimmed))+exp > maxIntegerDigits {
		return 0, ErrAmountTooLarge
	}

	// at most 11 significant digits remain, so the shift cannot overflow
	minor, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, ErrAmountTooLarge
	}
	for i := int64(0); i < exp+MinorUnits; i++ {
		minor *= 10
	}
	if minor > MaxAmount {
		return 0, ErrAmountTooLarge
	}

	return minor, nil
}

func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnits)
}

// FormatMinorUnits renders minor units with exactly two fractional digits.
func FormatMinorUnits(minor int64) string {
	return FromMinorUnits(minor).StringFixed(MinorUnits)
}
