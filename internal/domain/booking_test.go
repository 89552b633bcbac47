package domain_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertarktes/stadium-bookings/internal/domain"
)

var now = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func newBooking(t *testing.T) domain.Booking {
	t.Helper()
	b, err := domain.NewBooking(domain.NewBookingParams{
		StadiumID:     "stadium-1",
		BookedBy:      "user-1",
		StartsAt:      now.Add(72 * time.Hour),
		DurationHours: 2,
		PricePerHour:  decimal.NewFromInt(8000),
	}, now)
	require.NoError(t, err)
	return b
}

func TestNewBooking(t *testing.T) {
	b := newBooking(t)

	assert.Equal(t, domain.StatusPendingPayment, b.Status)
	assert.Equal(t, domain.PaymentPending, b.PaymentStatus)
	assert.Equal(t, "16000", b.TotalPrice.String())
	assert.False(t, b.RefundAmount.Valid)
	assert.Equal(t, now, b.CreatedAt)
	assert.Equal(t, int64(1), b.Version)
	assert.NotEqual(t, "", b.ID.String())
	assert.NoError(t, b.CheckInvariants())
}

func TestNewBooking_Validation(t *testing.T) {
	valid := domain.NewBookingParams{
		StadiumID:     "stadium-1",
		StartsAt:      now.Add(time.Hour),
		DurationHours: 1,
		PricePerHour:  decimal.NewFromInt(100),
	}

	tests := []struct {
		name   string
		mutate func(p *domain.NewBookingParams)
	}{
		{"empty stadium", func(p *domain.NewBookingParams) { p.StadiumID = "  " }},
		{"past schedule", func(p *domain.NewBookingParams) { p.StartsAt = now.Add(-time.Minute) }},
		{"missing schedule", func(p *domain.NewBookingParams) { p.StartsAt = time.Time{} }},
		{"bad duration", func(p *domain.NewBookingParams) { p.DurationHours = 3.5 }},
		{"negative rate", func(p *domain.NewBookingParams) { p.PricePerHour = decimal.NewFromInt(-5) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := domain.NewBooking(p, now)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
		})
	}
}

func TestParseSchedule(t *testing.T) {
	loc := time.FixedZone("ICT", 7*60*60)
	start, err := domain.ParseSchedule("2026-11-20", "18:30", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 11, 20, 18, 30, 0, 0, loc), start)

	_, err = domain.ParseSchedule("20/11/2026", "18:30", loc)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = domain.ParseSchedule("2026-11-20", "6pm", loc)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, domain.StatusPendingPayment.CanTransitionTo(domain.StatusConfirmed))
	assert.True(t, domain.StatusPendingPayment.CanTransitionTo(domain.StatusCancelled))
	assert.False(t, domain.StatusPendingPayment.CanTransitionTo(domain.StatusCompleted))
	assert.True(t, domain.StatusConfirmed.CanTransitionTo(domain.StatusCompleted))
	assert.True(t, domain.StatusConfirmed.CanTransitionTo(domain.StatusCancelled))
	assert.False(t, domain.StatusConfirmed.CanTransitionTo(domain.StatusPendingPayment))
	assert.True(t, domain.StatusCompleted.IsTerminal())
	assert.True(t, domain.StatusCancelled.IsTerminal())
	assert.False(t, domain.StatusConfirmed.IsTerminal())

	_, err := domain.ParseStatus("archived")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestConfirmPayment(t *testing.T) {
	b := newBooking(t)

	confirmed, err := b.ConfirmPayment(domain.PaymentProof{Succeeded: true, TransactionID: "tx-1"}, now)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
	assert.Equal(t, domain.PaymentPaid, confirmed.PaymentStatus)
	assert.Equal(t, "tx-1", confirmed.PaymentReference)
	assert.Equal(t, int64(2), confirmed.Version)

	_, err = confirmed.ConfirmPayment(domain.PaymentProof{Succeeded: true}, now)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestConfirmPayment_FailedProofLeavesBookingUntouched(t *testing.T) {
	b := newBooking(t)

	out, err := b.ConfirmPayment(domain.PaymentProof{Succeeded: false}, now)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, b, out)
}

func TestComplete(t *testing.T) {
	b := newBooking(t)

	_, err := b.Complete(b.ScheduledEnd())
	assert.True(t, errors.Is(err, domain.ErrInvalidState), "pending booking cannot complete")

	confirmed, err := b.ConfirmPayment(domain.PaymentProof{Succeeded: true}, now)
	require.NoError(t, err)

	_, err = confirmed.Complete(confirmed.ScheduledEnd().Add(-time.Second))
	assert.True(t, errors.Is(err, domain.ErrInvalidState), "slot has not ended")

	completed, err := confirmed.Complete(confirmed.ScheduledEnd())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	_, err = completed.Cancel("too late", completed.ScheduledEnd())
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
	_, err = completed.Complete(completed.ScheduledEnd())
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestCancel_PaymentStatusFollowsRefund(t *testing.T) {
	tests := []struct {
		name          string
		notice        time.Duration
		refund        string
		paymentStatus domain.PaymentStatus
	}{
		{"full refund", 30 * time.Hour, "16000", domain.PaymentRefunded},
		{"half refund", 20 * time.Hour, "8000", domain.PaymentPartiallyRefunded},
		{"no refund", 2 * time.Hour, "0", domain.PaymentPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBooking(t)
			confirmed, err := b.ConfirmPayment(domain.PaymentProof{Succeeded: true}, now)
			require.NoError(t, err)

			cancelled, err := confirmed.Cancel("schedule conflict", confirmed.StartsAt.Add(-tt.notice))
			require.NoError(t, err)
			assert.Equal(t, domain.StatusCancelled, cancelled.Status)
			assert.Equal(t, "schedule conflict", cancelled.CancellationReason)
			require.True(t, cancelled.RefundAmount.Valid)
			assert.Equal(t, tt.refund, cancelled.RefundAmount.Decimal.String())
			assert.Equal(t, tt.paymentStatus, cancelled.PaymentStatus)
			assert.NoError(t, cancelled.CheckInvariants())
		})
	}
}

func TestCancel_PendingBookingKeepsPendingWithoutRefund(t *testing.T) {
	b := newBooking(t)

	cancelled, err := b.Cancel("changed plans", b.StartsAt.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, cancelled.PaymentStatus)
	assert.True(t, cancelled.RefundAmount.Decimal.IsZero())
}

func TestCancel_Errors(t *testing.T) {
	b := newBooking(t)

	out, err := b.Cancel("   ", now)
	assert.True(t, errors.Is(err, domain.ErrValidation))
	assert.Equal(t, b, out)

	cancelled, err := b.Cancel("changed plans", now)
	require.NoError(t, err)

	_, err = cancelled.Cancel("again", now)
	assert.True(t, errors.Is(err, domain.ErrInvalidState), "second cancel must fail")
	_, err = cancelled.ConfirmPayment(domain.PaymentProof{Succeeded: true}, now)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
	_, err = cancelled.Complete(cancelled.ScheduledEnd())
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestQuoteRefund(t *testing.T) {
	b := newBooking(t)

	quote, err := b.QuoteRefund(b.StartsAt.Add(-20 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.RefundHalf, quote.Tier)
	assert.Equal(t, "8000", quote.Amount.String())
	assert.InDelta(t, 20.0, quote.HoursUntilStart, 1e-9)

	cancelled, err := b.Cancel("changed plans", now)
	require.NoError(t, err)
	_, err = cancelled.QuoteRefund(now)
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestScheduledEnd(t *testing.T) {
	b := newBooking(t)
	b.DurationHours = 1.5
	assert.Equal(t, b.StartsAt.Add(90*time.Minute), b.ScheduledEnd())
	assert.Equal(t, b.StartsAt.Format("2006-01-02"), b.Date())
	assert.Equal(t, "09:00", b.StartTime())
}
