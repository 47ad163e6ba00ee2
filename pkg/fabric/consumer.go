package fabric

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/cedadev/nlds-go/pkg/model"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Binding is one routing-key pattern a queue subscribes to; patterns use
// AMQP topic wildcards (`*` one segment, `#` any number).
type Binding struct {
	RoutingKey string
}

// HandlerFunc processes one inbound Envelope. Returning an error causes the
// delivery to be nacked without requeue — callers that want a retry must
// publish a new (possibly delayed) message themselves and ack the
// original, since redelivery-with-requeue does not carry a delay.
type HandlerFunc func(ctx context.Context, env model.Envelope) error

// Consumer binds a durable queue to the shared exchange and runs a single
// internally-sequential receive loop, per the "parallel workers, each
// internally single-threaded" scheduling model (§5). Running N replicas of
// a Consumer is how a deployment scales a stage; prefetch bounds how much
// work is in flight per replica.
type Consumer struct {
	conn      *Connection
	Logger    mlog.Logger
	QueueName string
	Bindings  []Binding
	Prefetch  int
}

// NewConsumer builds a Consumer against the given queue name and bindings.
// Prefetch defaults to 1, matching the fabric's "per-queue prefetch limit
// (default 1)" requirement.
func NewConsumer(conn *Connection, logger mlog.Logger, queueName string, bindings []Binding, prefetch int) *Consumer {
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{conn: conn, Logger: logger, QueueName: queueName, Bindings: bindings, Prefetch: prefetch}
}

// declare idempotently declares the queue and its bindings against the
// shared topic exchange.
func (c *Consumer) declare(ctx context.Context) (*amqp.Channel, error) {
	ch, err := c.conn.Channel(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := ch.QueueDeclare(c.QueueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("fabric: declare queue %s: %w", c.QueueName, err)
	}

	for _, b := range c.Bindings {
		if err := ch.QueueBind(c.QueueName, b.RoutingKey, ExchangeName, false, nil); err != nil {
			return nil, fmt.Errorf("fabric: bind queue %s to %s: %w", c.QueueName, b.RoutingKey, err)
		}
	}

	if err := ch.Qos(c.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("fabric: set qos: %w", err)
	}

	return ch, nil
}

// Run blocks, dispatching each delivery to handler, until ctx is
// cancelled. A process that dies before acking leaves the delivery unacked,
// so the broker redelivers it (at-least-once delivery); a handler panic is
// recovered here and nacked without requeue, like a handler error.
func (c *Consumer) Run(ctx context.Context, handler HandlerFunc) error {
	ch, err := c.declare(ctx)
	if err != nil {
		return err
	}

	deliveries, err := ch.Consume(c.QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("fabric: consume %s: %w", c.QueueName, err)
	}

	c.Logger.Infof("fabric: consumer for %s listening", c.QueueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("fabric: delivery channel for %s closed", c.QueueName)
			}

			c.handleOne(ctx, handler, d)
		}
	}
}

func (c *Consumer) handleOne(ctx context.Context, handler HandlerFunc, d amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.Logger.Errorf("fabric: handler panic on %s: %v", c.QueueName, r)
			_ = d.Nack(false, false)
		}
	}()

	var env model.Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		c.Logger.Errorf("fabric: malformed envelope on %s: %v", c.QueueName, err)
		_ = d.Nack(false, false) // protocol error: never requeue a poisoned message

		return
	}

	if err := handler(ctx, env); err != nil {
		c.Logger.Errorf("fabric: handler error on %s: %v", c.QueueName, err)
		_ = d.Nack(false, false)

		return
	}

	_ = d.Ack(false)
}
