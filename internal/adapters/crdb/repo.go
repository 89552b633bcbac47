package crdb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/robertarktes/stadium-bookings/internal/domain"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	started := time.Now()
	defer func() { observability.DBTxDuration.Observe(time.Since(started).Seconds()) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	err = fn(tx)
	if err == nil {
		err = tx.Commit(ctx)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case SerializationFailureCode:
				return errors.Mark(errors.Wrap(err, "booking transaction"), domain.ErrSerializationFailure)
			case UniqueViolationCode:
				return errors.Mark(errors.Wrap(err, "booking transaction"), domain.ErrConflict)
			}
		}
		return err
	}
	return nil
}

const bookingColumns = `id, stadium_id, booked_by, starts_at, duration_hours::STRING, price_per_hour::STRING,
	total_price::STRING, status, payment_status, payment_reference, cancellation_reason, refund_amount::STRING,
	created_at, updated_at, cancelled_at, completed_at, version`

func (r *Repository) Load(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, domain.NotFoundErrorf("booking %s not found", id)
	}
	return b, err
}

// Save writes b and its events in one transaction. Version 1 is inserted;
// later versions update the row only if it still holds the previous version.
func (r *Repository) Save(ctx context.Context, b domain.Booking, events ...domain.Event) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		if err := r.writeBooking(ctx, tx, b); err != nil {
			return err
		}
		for _, evt := range events {
			rec, err := outboxRecordFor(evt)
			if err != nil {
				return err
			}
			if err := r.InsertOutbox(ctx, tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) writeBooking(ctx context.Context, tx pgx.Tx, b domain.Booking) error {
	var refund *string
	if b.RefundAmount.Valid {
		s := b.RefundAmount.Decimal.String()
		refund = &s
	}

	if b.Version == 1 {
		result, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, stadium_id, booked_by, starts_at, ends_at, duration_hours, price_per_hour,
				total_price, status, payment_status, payment_reference, cancellation_reason, refund_amount,
				created_at, updated_at, cancelled_at, completed_at, version)
			VALUES ($1, $2, $3, $4, $5, $6::DECIMAL, $7::DECIMAL, $8::DECIMAL, $9, $10, $11, $12, $13::DECIMAL,
				$14, $15, $16, $17, $18)
			ON CONFLICT (id) DO NOTHING
		`, b.ID, b.StadiumID, b.BookedBy, b.StartsAt, b.ScheduledEnd(),
			decimal.NewFromFloat(b.DurationHours).String(), b.PricePerHour.String(), b.TotalPrice.String(),
			string(b.Status), string(b.PaymentStatus), b.PaymentReference, b.CancellationReason, refund,
			b.CreatedAt, b.UpdatedAt, b.CancelledAt, b.CompletedAt, b.Version)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return errors.Mark(errors.Newf("booking %s already exists", b.ID), domain.ErrConflict)
		}
		return nil
	}

	result, err := tx.Exec(ctx, `
		UPDATE bookings SET status = $2, payment_status = $3, payment_reference = $4, cancellation_reason = $5,
			refund_amount = $6::DECIMAL, updated_at = $7, cancelled_at = $8, completed_at = $9, version = $10
		WHERE id = $1 AND version = $11
	`, b.ID, string(b.Status), string(b.PaymentStatus), b.PaymentReference, b.CancellationReason, refund,
		b.UpdatedAt, b.CancelledAt, b.CompletedAt, b.Version, b.Version-1)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, b.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.NotFoundErrorf("booking %s not found", b.ID)
		}
		return errors.Mark(errors.Newf("booking %s was modified concurrently", b.ID), domain.ErrConflict)
	}
	return nil
}

// ListDueForCompletion returns confirmed bookings whose slot ended by now.
func (r *Repository) ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM bookings
		WHERE status = 'confirmed' AND ends_at <= $1
		ORDER BY ends_at ASC LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var (
		b                     domain.Booking
		duration, rate, total string
		status, paymentStatus string
		refund                *string
	)
	err := row.Scan(&b.ID, &b.StadiumID, &b.BookedBy, &b.StartsAt, &duration, &rate, &total, &status,
		&paymentStatus, &b.PaymentReference, &b.CancellationReason, &refund, &b.CreatedAt, &b.UpdatedAt,
		&b.CancelledAt, &b.CompletedAt, &b.Version)
	if err != nil {
		return domain.Booking{}, err
	}

	hours, err := decimal.NewFromString(duration)
	if err != nil {
		return domain.Booking{}, errors.Wrap(err, "duration_hours")
	}
	b.DurationHours = hours.InexactFloat64()
	if b.PricePerHour, err = decimal.NewFromString(rate); err != nil {
		return domain.Booking{}, errors.Wrap(err, "price_per_hour")
	}
	if b.TotalPrice, err = decimal.NewFromString(total); err != nil {
		return domain.Booking{}, errors.Wrap(err, "total_price")
	}
	if refund != nil {
		amount, err := decimal.NewFromString(*refund)
		if err != nil {
			return domain.Booking{}, errors.Wrap(err, "refund_amount")
		}
		b.RefundAmount = decimal.NewNullDecimal(amount)
	}
	b.Status = domain.Status(status)
	if !b.Status.IsValid() {
		return domain.Booking{}, errors.Newf("booking %s has unknown status %q", b.ID, status)
	}
	b.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return b, nil
}

func outboxRecordFor(evt domain.Event) (OutboxRecord, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return OutboxRecord{}, err
	}
	return OutboxRecord{
		ID:            evt.ID,
		AggregateType: "booking",
		AggregateID:   evt.BookingID,
		EventType:     string(evt.Type),
		Payload:       payload,
		DedupeKey:     evt.ID.String(),
	}, nil
}
