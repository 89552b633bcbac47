package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// allowedHalfHours lists the bookable durations as multiples of 30 minutes.
var allowedHalfHours = map[int64]struct{}{
	1: {}, 2: {}, 3: {}, 4: {}, 5: {}, 6: {}, 8: {}, 10: {},
}

// AllowedDurations returns the bookable durations in hours, ascending.
func AllowedDurations() []float64 {
	return []float64{0.5, 1, 1.5, 2, 2.5, 3, 4, 5}
}

// ValidateDuration checks that hours is one of AllowedDurations.
func ValidateDuration(hours float64) error {
	if !(hours > 0) || math.IsInf(hours, 0) {
		return ValidationErrorf("duration must be positive, got %v", hours)
	}
	halves := hours * 2
	if halves != math.Trunc(halves) {
		return ValidationErrorf("duration %v is not a multiple of 0.5 hours", hours)
	}
	if _, ok := allowedHalfHours[int64(halves)]; !ok {
		return ValidationErrorf("duration %v is not an allowed booking length", hours)
	}
	return nil
}

// ComputeTotal prices a booking of durationHours at pricePerHour, rounded
// half-up to whole currency units.
func ComputeTotal(durationHours float64, pricePerHour decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateDuration(durationHours); err != nil {
		return decimal.Zero, err
	}
	if pricePerHour.IsNegative() {
		return decimal.Zero, ValidationErrorf("price per hour must not be negative, got %s", pricePerHour)
	}
	return roundCurrency(decimal.NewFromFloat(durationHours).Mul(pricePerHour)), nil
}

// roundCurrency rounds to whole units. Amounts are never negative here, so
// decimal's half-away-from-zero rounding is half-up.
func roundCurrency(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}
