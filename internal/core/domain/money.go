package domain

import (
	"github.com/shopspring/decimal"
)

// MinorUnitsPerUnit is the number of minor units in one currency unit.
const MinorUnitsPerUnit = 100

// FormatAmount renders minor units as a fixed two-decimal string ("105.00").
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

// ParseAmount converts a decimal string ("12.5") into minor units, rejecting
// values with more precision than a minor unit.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	scaled := d.Shift(2)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrAmountPrecision
	}
	return scaled.IntPart(), nil
}

// ApplyRate returns round(amount * rate) in minor units, halves rounded up.
func ApplyRate(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}

// WholeUnits returns floor(minor / 100) for non-negative amounts.
func WholeUnits(minor int64) int64 {
	if minor <= 0 {
		return 0
	}
	return minor / MinorUnitsPerUnit
}
