package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/robertarktes/stadium-bookings/internal/adapters/crdb"
	"github.com/robertarktes/stadium-bookings/internal/observability"
)

// Source is the transactional outbox table.
type Source interface {
	DrainOutbox(ctx context.Context, limit int, publish func(ctx context.Context, rec crdb.OutboxRecord) error) (int, error)
	OldestUnpublished(ctx context.Context) (*time.Time, error)
}

type Sink interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

// Publisher relays outbox records to the broker. Records that fail to publish
// stay in the outbox and are retried on the next tick, so delivery is at least
// once and consumers dedupe on MessageId.
type Publisher struct {
	source Source
	sink   Sink
	logger observability.Logger
	batch  int
	now    func() time.Time
}

func NewPublisher(source Source, sink Sink, logger observability.Logger, batch int) *Publisher {
	if batch <= 0 {
		batch = 10
	}
	return &Publisher{source: source, sink: sink, logger: logger, batch: batch, now: time.Now}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := p.PublishPending(ctx)
			if err != nil {
				p.logger.WithError(err).Error("outbox drain failed")
				continue
			}
			if n > 0 {
				p.logger.WithField("published", n).Debug("outbox drained")
			}
		}
	}
}

// PublishPending publishes one batch and refreshes the lag gauge.
func (p *Publisher) PublishPending(ctx context.Context) (int, error) {
	n, err := p.source.DrainOutbox(ctx, p.batch, p.publish)
	if err != nil {
		return n, err
	}
	oldest, err := p.source.OldestUnpublished(ctx)
	if err != nil {
		return n, err
	}
	if oldest == nil {
		observability.OutboxLag.Set(0)
	} else {
		observability.OutboxLag.Set(p.now().Sub(*oldest).Seconds())
	}
	return n, nil
}

func (p *Publisher) publish(ctx context.Context, rec crdb.OutboxRecord) error {
	msg := amqp.Publishing{
		MessageId:   rec.DedupeKey,
		ContentType: "application/json",
		Type:        rec.EventType,
		Timestamp:   rec.CreatedAt,
		Body:        rec.Payload,
	}
	if err := p.sink.Publish(ctx, rec.EventType, msg); err != nil {
		observability.RabbitPublishRetries.Inc()
		p.logger.WithError(err).WithField("outbox_id", rec.ID).Warn("outbox publish failed, will retry")
		return err
	}
	return nil
}
