package payments

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/stadium-bookings/internal/domain"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// Result is what the payment provider reports for one booking, over the
// callback endpoint or the payments queue.
type Result struct {
	BookingID     string `json:"booking_id" validate:"required,uuid"`
	Status        string `json:"status" validate:"required,oneof=SUCCEEDED FAILED"`
	TransactionID string `json:"transaction_id" validate:"max=128"`
}

var validate = validator.New()

// Decode parses and validates a provider message.
func Decode(body []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(body, &r); err != nil {
		return Result{}, domain.ValidationErrorf("malformed payment result: %v", err)
	}
	if err := r.Validate(); err != nil {
		return Result{}, err
	}
	return r, nil
}

func (r Result) Validate() error {
	if err := validate.Struct(r); err != nil {
		return domain.ValidationErrorf("invalid payment result: %v", err)
	}
	return nil
}

func (r Result) Proof() domain.PaymentProof {
	return domain.PaymentProof{Succeeded: r.Status == StatusSucceeded, TransactionID: r.TransactionID}
}

type Confirmer interface {
	ConfirmPayment(ctx context.Context, id uuid.UUID, proof domain.PaymentProof) (domain.Booking, error)
}

type Handler struct {
	confirmer Confirmer
	logger    observability.Logger
}

func NewHandler(confirmer Confirmer, logger observability.Logger) *Handler {
	return &Handler{confirmer: confirmer, logger: logger}
}

// Handle applies one payment result. Results the booking can no longer take
// (failed payment, already confirmed, cancelled, unknown booking) are logged
// and dropped. A version conflict is retried once against the reloaded
// booking; storage failures and repeated conflicts are returned so the caller
// can retry.
func (h *Handler) Handle(ctx context.Context, r Result) error {
	id, err := uuid.Parse(r.BookingID)
	if err != nil {
		return domain.ValidationErrorf("invalid booking id %q", r.BookingID)
	}
	logger := observability.LoggerFromContext(ctx, h.logger).
		WithField("booking_id", id).
		WithField("transaction_id", r.TransactionID)

	_, err = h.confirmer.ConfirmPayment(ctx, id, r.Proof())
	if errors.Is(err, domain.ErrConflict) {
		logger.WithError(err).Info("booking changed concurrently, retrying payment result")
		_, err = h.confirmer.ConfirmPayment(ctx, id, r.Proof())
	}
	switch {
	case err == nil:
		logger.Info("payment confirmed")
		return nil
	case errors.Is(err, domain.ErrStorage), errors.Is(err, domain.ErrConflict):
		return err
	default:
		logger.WithError(err).Warn("payment result not applied")
		return nil
	}
}

// Consume acks handled deliveries and drops malformed messages. Conflicts are
// always requeued since the booking has moved on; storage failures are
// requeued once.
func (h *Handler) Consume(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("payment deliveries channel closed")
			}
			h.handleDelivery(ctx, d)
		}
	}
}

func (h *Handler) handleDelivery(ctx context.Context, d amqp.Delivery) {
	logger := h.logger.WithField("message_id", d.MessageId)

	r, err := Decode(d.Body)
	if err != nil {
		logger.WithError(err).Warn("dropping malformed payment result")
		d.Nack(false, false)
		return
	}
	if err := h.Handle(ctx, r); err != nil {
		logger.WithError(err).Error("payment result failed")
		d.Nack(false, errors.Is(err, domain.ErrConflict) || !d.Redelivered)
		return
	}
	d.Ack(false)
}
