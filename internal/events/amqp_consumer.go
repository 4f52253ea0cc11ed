package events

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPConsumer applies status events from a RabbitMQ fanout exchange through
// an auto-deleted queue owned by this process.
type AMQPConsumer struct {
	url      string
	exchange string
	queue    string
	applier  StatusApplier
	log      *zap.Logger
}

func NewAMQPConsumer(url, exchange, queue string, applier StatusApplier, log *zap.Logger) *AMQPConsumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &AMQPConsumer{
		url:      url,
		exchange: exchange,
		queue:    queue,
		applier:  applier,
		log:      log.Named("amqp_consumer"),
	}
}

// Run connects, binds and consumes until ctx is cancelled or the broker
// closes the channel.
func (c *AMQPConsumer) Run(ctx context.Context) error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("amqp consumer: dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp consumer: open channel: %w", err)
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(
		c.exchange, // name
		"fanout",   // kind
		true,       // durable
		false,      // auto-delete
		false,      // internal
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("amqp consumer: declare exchange: %w", err)
	}

	queue, err := ch.QueueDeclare(
		c.queue, // name
		false,   // durable
		true,    // auto-delete
		false,   // exclusive
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("amqp consumer: declare queue: %w", err)
	}

	if err := ch.QueueBind(queue.Name, "", c.exchange, false, nil); err != nil {
		return fmt.Errorf("amqp consumer: bind queue: %w", err)
	}

	msgs, err := ch.Consume(
		queue.Name, // queue
		"",         // consumer tag
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("amqp consumer: consume: %w", err)
	}

	c.log.Info("amqp consumer started",
		zap.String("exchange", c.exchange),
		zap.String("queue", queue.Name),
	)

	for {
		select {
		case <-ctx.Done():
			c.log.Info("amqp consumer stopping")
			return ctx.Err()

		case msg, ok := <-msgs:
			if !ok {
				return errors.New("amqp consumer: delivery channel closed")
			}
			c.handle(ctx, msg)
		}
	}
}

// handle acks applied events, drops undecodable ones and requeues the rest.
func (c *AMQPConsumer) handle(ctx context.Context, msg amqp.Delivery) {
	err := Dispatch(ctx, c.applier, c.log, msg.Body)
	if err == nil {
		_ = msg.Ack(false)
		return
	}

	permanent := Permanent(err)
	c.log.Warn("status event rejected",
		zap.Uint64("delivery_tag", msg.DeliveryTag),
		zap.Bool("requeue", !permanent),
		zap.Error(err),
	)
	_ = msg.Nack(false, !permanent)
}
