package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DateLayout      = "2006-01-02"
	StartTimeLayout = "15:04"
)

// Booking is a reservation of a stadium slot. Transition methods take a value
// receiver and return the next snapshot, so a failed transition never mutates
// the caller's copy.
type Booking struct {
	ID                 uuid.UUID           `json:"id"`
	StadiumID          string              `json:"stadium_id"`
	BookedBy           string              `json:"booked_by,omitempty"`
	StartsAt           time.Time           `json:"starts_at"`
	DurationHours      float64             `json:"duration_hours"`
	PricePerHour       decimal.Decimal     `json:"price_per_hour"`
	TotalPrice         decimal.Decimal     `json:"total_price"`
	Status             Status              `json:"status"`
	PaymentStatus      PaymentStatus       `json:"payment_status"`
	PaymentReference   string              `json:"payment_reference,omitempty"`
	CancellationReason string              `json:"cancellation_reason,omitempty"`
	RefundAmount       decimal.NullDecimal `json:"refund_amount"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time          `json:"completed_at,omitempty"`
	Version            int64               `json:"version"`
}

type NewBookingParams struct {
	ID            uuid.UUID
	StadiumID     string
	BookedBy      string
	StartsAt      time.Time
	DurationHours float64
	PricePerHour  decimal.Decimal
}

// NewBooking validates p and returns a booking awaiting payment.
func NewBooking(p NewBookingParams, now time.Time) (Booking, error) {
	stadiumID := strings.TrimSpace(p.StadiumID)
	if stadiumID == "" {
		return Booking{}, ValidationErrorf("stadium id is required")
	}
	if p.StartsAt.IsZero() {
		return Booking{}, ValidationErrorf("schedule is required")
	}
	if p.StartsAt.Before(now) {
		return Booking{}, ValidationErrorf("schedule %s is in the past", p.StartsAt.Format(time.RFC3339))
	}
	total, err := ComputeTotal(p.DurationHours, p.PricePerHour)
	if err != nil {
		return Booking{}, err
	}
	id := p.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return Booking{
		ID:            id,
		StadiumID:     stadiumID,
		BookedBy:      p.BookedBy,
		StartsAt:      p.StartsAt,
		DurationHours: p.DurationHours,
		PricePerHour:  p.PricePerHour,
		TotalPrice:    total,
		Status:        StatusPendingPayment,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}, nil
}

// ParseSchedule combines a calendar date and a wall-clock start time in loc.
func ParseSchedule(date, startTime string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+StartTimeLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(startTime), loc)
	if err != nil {
		return time.Time{}, ValidationErrorf("invalid schedule %q %q", date, startTime)
	}
	return t, nil
}

func (b Booking) Date() string      { return b.StartsAt.Format(DateLayout) }
func (b Booking) StartTime() string { return b.StartsAt.Format(StartTimeLayout) }

func (b Booking) ScheduledStart() time.Time { return b.StartsAt }

func (b Booking) ScheduledEnd() time.Time {
	return b.StartsAt.Add(time.Duration(math.Round(b.DurationHours * float64(time.Hour))))
}

// PaymentProof is the payment collaborator's verdict on a booking.
type PaymentProof struct {
	Succeeded     bool
	TransactionID string
}

func (b Booking) ConfirmPayment(proof PaymentProof, now time.Time) (Booking, error) {
	if b.Status != StatusPendingPayment {
		return b, InvalidStateErrorf("cannot confirm payment for booking %s in status %s", b.ID, b.Status)
	}
	if !proof.Succeeded {
		return b, ValidationErrorf("payment for booking %s did not succeed", b.ID)
	}
	next := b.advance(StatusConfirmed, now)
	next.PaymentStatus = PaymentPaid
	next.PaymentReference = proof.TransactionID
	return next, nil
}

// Complete closes a confirmed booking once its slot has ended.
func (b Booking) Complete(now time.Time) (Booking, error) {
	if b.Status != StatusConfirmed {
		return b, InvalidStateErrorf("cannot complete booking %s in status %s", b.ID, b.Status)
	}
	if end := b.ScheduledEnd(); now.Before(end) {
		return b, InvalidStateErrorf("booking %s ends at %s", b.ID, end.Format(time.RFC3339))
	}
	next := b.advance(StatusCompleted, now)
	next.CompletedAt = &now
	return next, nil
}

// Cancel terminates the booking and records the refund owed at now.
func (b Booking) Cancel(reason string, now time.Time) (Booking, error) {
	if !b.Status.CanTransitionTo(StatusCancelled) {
		return b, InvalidStateErrorf("cannot cancel booking %s in status %s", b.ID, b.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return b, ValidationErrorf("cancellation reason is required")
	}
	refund := ComputeRefund(b.TotalPrice, b.StartsAt, now)

	next := b.advance(StatusCancelled, now)
	next.CancellationReason = reason
	next.RefundAmount = decimal.NewNullDecimal(refund)
	next.CancelledAt = &now
	switch {
	case refund.IsZero():
	case refund.Equal(b.TotalPrice):
		next.PaymentStatus = PaymentRefunded
	default:
		next.PaymentStatus = PaymentPartiallyRefunded
	}
	return next, nil
}

// QuoteRefund reports what Cancel would refund at now without changing anything.
func (b Booking) QuoteRefund(now time.Time) (RefundQuote, error) {
	if !b.Status.CanTransitionTo(StatusCancelled) {
		return RefundQuote{}, InvalidStateErrorf("booking %s in status %s cannot be cancelled", b.ID, b.Status)
	}
	return RefundQuote{
		BookingID:       b.ID.String(),
		Tier:            RefundTierFor(b.StartsAt, now),
		Amount:          ComputeRefund(b.TotalPrice, b.StartsAt, now),
		TotalPrice:      b.TotalPrice,
		HoursUntilStart: b.StartsAt.Sub(now).Hours(),
		At:              now,
	}, nil
}

func (b Booking) advance(to Status, now time.Time) Booking {
	b.Status = to
	b.UpdatedAt = now
	b.Version++
	return b
}

// CheckInvariants reports the first broken booking invariant, if any.
func (b Booking) CheckInvariants() error {
	if !b.Status.IsValid() {
		return InvalidStateErrorf("unknown status %q", b.Status)
	}
	want, err := ComputeTotal(b.DurationHours, b.PricePerHour)
	if err != nil {
		return err
	}
	if !want.Equal(b.TotalPrice) {
		return InvalidStateErrorf("total price %s does not match %v x %s", b.TotalPrice, b.DurationHours, b.PricePerHour)
	}
	if b.Status == StatusCancelled {
		if b.CancellationReason == "" {
			return InvalidStateErrorf("cancelled booking %s has no reason", b.ID)
		}
		if !b.RefundAmount.Valid {
			return InvalidStateErrorf("cancelled booking %s has no refund amount", b.ID)
		}
	}
	if b.PaymentStatus == PaymentRefunded && b.Status != StatusCancelled {
		return InvalidStateErrorf("refunded booking %s is not cancelled", b.ID)
	}
	return nil
}
