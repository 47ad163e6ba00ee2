package fabric

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RPCClient issues synchronous request/reply calls over the fabric: an
// exclusive reply queue per process, correlation id echoed by the
// receiver, bounded by a caller-supplied time limit (§4.10).
type RPCClient struct {
	conn      *Connection
	replyTo   string
	pending   chan amqp.Delivery
	TimeLimit time.Duration
}

// NewRPCClient declares this process's exclusive, auto-delete reply queue
// and starts draining it.
func NewRPCClient(ctx context.Context, conn *Connection, timeLimit time.Duration) (*RPCClient, error) {
	ch, err := conn.Channel(ctx)
	if err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("fabric: declare rpc reply queue: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("fabric: consume rpc reply queue: %w", err)
	}

	c := &RPCClient{
		conn:      conn,
		replyTo:   q.Name,
		pending:   make(chan amqp.Delivery, 16),
		TimeLimit: timeLimit,
	}

	go func() {
		for d := range deliveries {
			c.pending <- d
		}
	}()

	return c, nil
}

// Call publishes payload to routingKey with a fresh correlation id and
// reply-to set to this client's reply queue, then blocks for a matching
// reply up to TimeLimit (or the context deadline, whichever is sooner).
func (c *RPCClient) Call(ctx context.Context, routingKey string, payload any) (json.RawMessage, error) {
	ch, err := c.conn.Channel(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("fabric: marshal rpc payload: %w", err)
	}

	corrID := uuid.New().String()

	callCtx, cancel := context.WithTimeout(ctx, c.TimeLimit)
	defer cancel()

	if err := ch.PublishWithContext(callCtx, ExchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		ReplyTo:       c.replyTo,
		Body:          body,
	}); err != nil {
		return nil, fmt.Errorf("fabric: rpc publish: %w", err)
	}

	for {
		select {
		case <-callCtx.Done():
			return nil, fmt.Errorf("fabric: rpc call to %s timed out: %w", routingKey, callCtx.Err())
		case d := <-c.pending:
			if d.CorrelationId != corrID {
				// Stale reply for a call this client already abandoned;
				// discard and keep waiting for ours.
				continue
			}

			return json.RawMessage(d.Body), nil
		}
	}
}

// RPCServer replies to RPC calls delivered to a regular consumer queue: the
// handler's return value is published back to the delivery's ReplyTo with
// the same CorrelationId.
type RPCServer struct {
	conn *Connection
}

// NewRPCServer wraps a Connection for replying to RPC deliveries.
func NewRPCServer(conn *Connection) *RPCServer {
	return &RPCServer{conn: conn}
}

// Reply publishes response to the delivery's reply-to queue, echoing its
// correlation id.
func (s *RPCServer) Reply(ctx context.Context, d amqp.Delivery, response any) error {
	if d.ReplyTo == "" {
		return fmt.Errorf("fabric: delivery has no reply-to, cannot reply")
	}

	ch, err := s.conn.Channel(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("fabric: marshal rpc response: %w", err)
	}

	return ch.PublishWithContext(ctx, "", d.ReplyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: d.CorrelationId,
		Body:          body,
	})
}

// SystemStatRequest is the distinguished payload that tells a generic
// consumer to short-circuit and reply with its own liveness info rather
// than doing real work (§4.10).
type SystemStatRequest struct {
	APIAction string `json:"api_action"`
}

// IsSystemStat reports whether raw decodes to a system_stat short-circuit
// request.
func IsSystemStat(raw json.RawMessage) bool {
	var req SystemStatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return false
	}

	return req.APIAction == "system_stat"
}

// SystemStatReply is the payload a consumer replies with for a
// system_stat request.
type SystemStatReply struct {
	Hostname     string    `json:"hostname"`
	PID          int       `json:"pid"`
	ConsumerTag  string    `json:"consumer_tag"`
	Timestamp    time.Time `json:"timestamp"`
}
