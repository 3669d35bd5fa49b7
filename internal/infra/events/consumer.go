package events

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	pkgevents "github.com/floroz/commerce/pkg/events"
)

// ErrPermanent marks a handler failure that retrying cannot fix
var ErrPermanent = errors.New("permanent failure")

// Handler processes one decoded event. Returning an error wrapping
// ErrPermanent drops the message; any other error requeues it.
type Handler func(ctx context.Context, routingKey string, fields map[string]any) error

// Consumer reads domain events from a durable queue bound to the exchange
type Consumer struct {
	conn        *amqp.Connection
	exchange    string
	queue       string
	routingKeys []string
	handler     Handler
	logger      logrus.FieldLogger
}

// NewConsumer creates a consumer for queue, bound with each routing key
func NewConsumer(conn *amqp.Connection, exchange, queue string, routingKeys []string, handler Handler, logger logrus.FieldLogger) *Consumer {
	return &Consumer{
		conn:        conn,
		exchange:    exchange,
		queue:       queue,
		routingKeys: routingKeys,
		handler:     handler,
		logger:      logger.WithField("queue", queue),
	}
}

// Run starts the consumer loop. It returns nil once ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := c.setup(ch); err != nil {
		return fmt.Errorf("failed to setup rabbitmq: %w", err)
	}

	msgs, err := ch.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("waiting for messages")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	log := c.logger.WithField("routing_key", d.RoutingKey)

	fields, err := pkgevents.DecodePayload(d.Body)
	if err != nil {
		log.WithError(err).Error("failed to decode event")
		if nackErr := d.Nack(false, false); nackErr != nil {
			log.WithError(nackErr).Error("failed to nack message")
		}
		return
	}

	if err := c.handler(ctx, d.RoutingKey, fields); err != nil {
		requeue := !errors.Is(err, ErrPermanent)
		log.WithError(err).WithField("requeue", requeue).Error("failed to process event")
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			log.WithError(nackErr).Error("failed to nack message")
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		log.WithError(ackErr).Error("failed to ack message")
	}
}

func (c *Consumer) setup(ch *amqp.Channel) error {
	if err := declareExchange(ch, c.exchange); err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		c.queue, // name
		true,    // durable
		false,   // delete when unused
		false,   // exclusive
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return err
	}

	for _, key := range c.routingKeys {
		if err := ch.QueueBind(q.Name, key, c.exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}
