// Package fabric implements the NLDS message fabric on top of RabbitMQ: a
// single topic exchange with delayed delivery, per-queue prefetch, and a
// parallel RPC channel, matching the topic-routed broker described in the
// component design.
package fabric

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cedadev/nlds-go/pkg/mlog"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeName is the single topic exchange every NLDS message travels
// through.
const ExchangeName = "nlds_exchange"

// delayHeader is the x-delayed-message plugin's header key for a
// per-message delay in milliseconds.
const delayHeader = "x-delay"

// Connection owns a single AMQP connection and channel, redialling on
// connection-level errors the way the teacher's connection singletons do,
// generalised here to also declare the delayed topic exchange NLDS needs.
type Connection struct {
	URL    string
	Logger mlog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewConnection builds an unconnected Connection; call Connect before use.
func NewConnection(url string, logger mlog.Logger) *Connection {
	return &Connection{URL: url, Logger: logger}
}

// Connect dials the broker, opens a channel, and declares the shared topic
// exchange with delayed-message support. It is safe to call again after a
// disconnect.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return fmt.Errorf("fabric: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("fabric: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		ExchangeName,
		"x-delayed-message",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		amqp.Table{"x-delayed-type": "topic"},
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()

		return fmt.Errorf("fabric: declare exchange: %w", err)
	}

	c.conn = conn
	c.channel = ch

	c.Logger.Info("fabric: connected to rabbitmq")

	closeNotify := make(chan *amqp.Error, 1)
	conn.NotifyClose(closeNotify)

	go c.watchClose(closeNotify)

	return nil
}

// watchClose logs unexpected disconnects; reconnection is the
// responsibility of the next caller of Channel, which re-dials lazily.
func (c *Connection) watchClose(notify chan *amqp.Error) {
	if err := <-notify; err != nil {
		c.Logger.Errorf("fabric: connection closed: %v", err)
	}

	c.mu.Lock()
	c.conn = nil
	c.channel = nil
	c.mu.Unlock()
}

// Channel returns the current AMQP channel, reconnecting first if the
// connection was dropped.
func (c *Connection) Channel(ctx context.Context) (*amqp.Channel, error) {
	c.mu.Lock()
	connected := c.channel != nil
	c.mu.Unlock()

	if !connected {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.channel, nil
}

// Close tears down the channel and connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		_ = c.channel.Close()
	}

	if c.conn != nil {
		return c.conn.Close()
	}

	return nil
}

// delayMillis converts a Go duration into the millisecond header value the
// x-delayed-message plugin expects.
func delayMillis(d time.Duration) int32 {
	if d <= 0 {
		return 0
	}

	return int32(d.Milliseconds())
}
