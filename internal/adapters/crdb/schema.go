package crdb

import "context"

const schema = `
CREATE TABLE IF NOT EXISTS bookings (
	id UUID PRIMARY KEY,
	stadium_id TEXT NOT NULL,
	booked_by TEXT NOT NULL DEFAULT '',
	starts_at TIMESTAMPTZ NOT NULL,
	ends_at TIMESTAMPTZ NOT NULL,
	duration_hours DECIMAL(4,1) NOT NULL,
	price_per_hour DECIMAL NOT NULL,
	total_price DECIMAL NOT NULL,
	status TEXT NOT NULL CHECK (status IN ('pending_payment', 'confirmed', 'completed', 'cancelled')),
	payment_status TEXT NOT NULL CHECK (payment_status IN ('pending', 'paid', 'refunded', 'partially_refunded')),
	payment_reference TEXT NOT NULL DEFAULT '',
	cancellation_reason TEXT NOT NULL DEFAULT '',
	refund_amount DECIMAL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	cancelled_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	version INT8 NOT NULL,
	INDEX bookings_status_ends_at_idx (status, ends_at)
);
CREATE TABLE IF NOT EXISTS outbox (
	id UUID PRIMARY KEY,
	aggregate_type TEXT NOT NULL,
	aggregate_id UUID NOT NULL,
	event_type TEXT NOT NULL,
	payload_json JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	published_at TIMESTAMPTZ,
	status TEXT NOT NULL DEFAULT 'NEW' CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
	dedupe_key TEXT NOT NULL,
	INDEX outbox_status_created_at_idx (status, created_at)
);
`

// Migrate creates the booking and outbox tables when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, schema)
	return err
}
