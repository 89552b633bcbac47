package rabbit

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	PaymentsExchange   = "payments.events"
	PaymentsRoutingKey = "payment.#"
)

type Consumer struct {
	ch    *amqp.Channel
	queue string
}

// NewConsumer declares queue, binds it to the payments exchange and limits
// unacked deliveries to prefetch.
func NewConsumer(conn *amqp.Connection, queue string, prefetch int) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(PaymentsExchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, err
	}
	if err := ch.QueueBind(queue, PaymentsRoutingKey, PaymentsExchange, false, nil); err != nil {
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	return &Consumer{ch: ch, queue: queue}, nil
}

func (c *Consumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	return c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
