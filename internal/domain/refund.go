package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	FullRefundNotice = 24 * time.Hour
	HalfRefundNotice = 12 * time.Hour
)

type RefundTier string

const (
	RefundFull RefundTier = "full"
	RefundHalf RefundTier = "half"
	RefundNone RefundTier = "none"
)

var halfRate = decimal.NewFromFloat(0.5)

// RefundTierFor picks the tier from the notice given before scheduledStart.
// Cancelling after the slot has started falls into RefundNone.
func RefundTierFor(scheduledStart, now time.Time) RefundTier {
	notice := scheduledStart.Sub(now)
	switch {
	case notice >= FullRefundNotice:
		return RefundFull
	case notice >= HalfRefundNotice:
		return RefundHalf
	default:
		return RefundNone
	}
}

// ComputeRefund returns the amount owed back on totalPrice when cancelling at now.
func ComputeRefund(totalPrice decimal.Decimal, scheduledStart, now time.Time) decimal.Decimal {
	switch RefundTierFor(scheduledStart, now) {
	case RefundFull:
		return totalPrice
	case RefundHalf:
		return roundCurrency(totalPrice.Mul(halfRate))
	default:
		return decimal.Zero
	}
}

// RefundQuote is the outcome a cancellation at At would produce.
type RefundQuote struct {
	BookingID       string          `json:"booking_id"`
	Tier            RefundTier      `json:"tier"`
	Amount          decimal.Decimal `json:"amount"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	HoursUntilStart float64         `json:"hours_until_start"`
	At              time.Time       `json:"at"`
}
