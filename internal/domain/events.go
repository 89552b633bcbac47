package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCompleted EventType = "booking.completed"
	EventBookingCancelled EventType = "booking.cancelled"
)

// Event records a booking transition for the outbox and the audit trail.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	BookingID  uuid.UUID `json:"booking_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Booking    Booking   `json:"booking"`
}

func NewEvent(t EventType, b Booking, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		BookingID:  b.ID,
		OccurredAt: at,
		Booking:    b,
	}
}
