package rabbit

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

const EventsExchange = "bookings.events"

type Publisher struct {
	ch *amqp.Channel
}

// NewPublisher declares the events exchange and puts the channel in confirm
// mode so Publish only returns once the broker has taken the message.
func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		return nil, err
	}
	return &Publisher{ch: ch}, nil
}

func (p *Publisher) Publish(ctx context.Context, key string, msg amqp.Publishing) error {
	msg.DeliveryMode = amqp.Persistent
	conf, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, EventsExchange, key, false, false, msg)
	if err != nil {
		return err
	}
	ok, err := conf.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return amqp.ErrClosed
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}
