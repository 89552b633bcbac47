package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/robertarktes/stadium-bookings/internal/domain"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
	now    func() time.Time
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
		now:    time.Now,
	}
}

type AuditLog struct {
	ID        string    `bson:"_id"`
	Action    string    `bson:"action"`
	BookingID string    `bson:"booking_id"`
	Actor     string    `bson:"actor"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, id uuid.UUID, action string, bookingID uuid.UUID, actor string, data bson.M) error {
	log := AuditLog{
		ID:        id.String(),
		Action:    action,
		BookingID: bookingID.String(),
		Actor:     actor,
		Timestamp: a.now(),
		Data:      data,
	}
	// The event id is the document id, so a redelivered event is written once.
	_, err := a.coll.ReplaceOne(ctx, bson.M{"_id": log.ID}, log, options.Replace().SetUpsert(true))
	if err != nil {
		a.logger.WithError(err).WithField("booking_id", bookingID).Error("failed to insert audit log")
		return err
	}
	return nil
}

// LogBooking records a booking transition event.
func (a *AuditLogger) LogBooking(ctx context.Context, evt domain.Event) error {
	b := evt.Booking
	data := bson.M{
		"status":         string(b.Status),
		"payment_status": string(b.PaymentStatus),
		"stadium_id":     b.StadiumID,
		"starts_at":      b.StartsAt,
		"total_price":    b.TotalPrice.String(),
		"version":        b.Version,
		"occurred_at":    evt.OccurredAt,
	}
	if b.RefundAmount.Valid {
		data["refund_amount"] = b.RefundAmount.Decimal.String()
	}
	if b.CancellationReason != "" {
		data["cancellation_reason"] = b.CancellationReason
	}
	if b.PaymentReference != "" {
		data["payment_reference"] = b.PaymentReference
	}
	return a.LogEvent(ctx, evt.ID, string(evt.Type), evt.BookingID, b.BookedBy, data)
}

// History returns the audit trail of one booking, oldest first.
func (a *AuditLogger) History(ctx context.Context, bookingID uuid.UUID) ([]AuditLog, error) {
	cur, err := a.coll.Find(ctx, bson.M{"booking_id": bookingID.String()}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var logs []AuditLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
