package model

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// minorUnitExponent is the number of decimal places between the major and
// minor currency unit (cents).
const minorUnitExponent = 2

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ToMinorUnits converts a major-unit amount (e.g. dollars) into the integer
// minor-unit representation used for storage. Values are rounded half away
// from zero to the nearest minor unit.
func ToMinorUnits(major decimal.Decimal) (int64, error) {
	minor := major.Round(minorUnitExponent).Shift(minorUnitExponent)
	if minor.Abs().GreaterThan(maxMinorUnits) {
		return 0, fmt.Errorf("%w: amount %s is out of range", ErrInvalidInput, major.String())
	}
	return minor.IntPart(), nil
}

// PositiveMinorUnits converts major to minor units and rejects zero or
// negative amounts.
func PositiveMinorUnits(major decimal.Decimal) (int64, error) {
	minor, err := ToMinorUnits(major)
	if err != nil {
		return 0, err
	}
	if minor <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	return minor, nil
}

// FromMinorUnits converts a stored minor-unit amount back to major units.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -minorUnitExponent)
}

// FormatMinorUnits renders a minor-unit amount as a fixed two-place major
// amount, e.g. 123456 -> "1234.56".
func FormatMinorUnits(minor int64) string {
	return FromMinorUnits(minor).StringFixed(minorUnitExponent)
}
