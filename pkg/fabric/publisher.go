package fabric

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cedadev/nlds-go/pkg/model"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes Envelopes onto the shared topic exchange, optionally
// delayed, matching the fabric's exponential-back-off requirement.
type Publisher struct {
	conn *Connection
}

// NewPublisher wraps a Connection for publishing.
func NewPublisher(conn *Connection) *Publisher {
	return &Publisher{conn: conn}
}

// Publish sends env to the exchange under its own RoutingKey, with no
// delay.
func (p *Publisher) Publish(ctx context.Context, env model.Envelope) error {
	return p.PublishDelayed(ctx, env, 0)
}

// PublishDelayed sends env to the exchange under its own RoutingKey; the
// broker withholds routing for at least delay. A zero delay is a normal
// immediate publish.
func (p *Publisher) PublishDelayed(ctx context.Context, env model.Envelope, delay time.Duration) error {
	ch, err := p.conn.Channel(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("fabric: marshal envelope: %w", err)
	}

	headers := amqp.Table{}
	if d := delayMillis(delay); d > 0 {
		headers[delayHeader] = d
	}

	return ch.PublishWithContext(
		ctx,
		ExchangeName,
		env.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers:      headers,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
