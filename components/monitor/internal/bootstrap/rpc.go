package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"

	monsvc "github.com/cedadev/nlds-go/components/monitor/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/mlog"
)

// StatRequest is the RPC payload a client sends to query a transaction's
// rolled-up state (§4.10).
type StatRequest struct {
	TransactionID string `json:"transaction_id"`
}

// queueName is the monitor's RPC-facing queue, distinct from the
// monitor-put/monitor-get update queue MonitorApp consumes.
const rpcQueueName = "monitor-stat"

// RPCApp answers synchronous stat queries over the fabric's RPC channel,
// the monitor's read-side counterpart to MonitorApp's write side. Unlike
// MonitorApp it consumes raw AMQP deliveries rather than Envelopes, since
// an RPC request/reply pair carries its own ReplyTo/CorrelationId framing
// (§4.10, pkg/fabric.RPCServer).
type RPCApp struct {
	Conn    *fabric.Connection
	Logger  mlog.Logger
	Service *monsvc.Monitor
}

func (a *RPCApp) Run(ctx context.Context, launcher *app.Launcher) error {
	ch, err := a.Conn.Channel(ctx)
	if err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(rpcQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("monitor rpc: declare queue: %w", err)
	}

	if err := ch.QueueBind(rpcQueueName, "*.monitor-stat.query", fabric.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("monitor rpc: bind queue: %w", err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("monitor rpc: set qos: %w", err)
	}

	deliveries, err := ch.Consume(rpcQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("monitor rpc: consume: %w", err)
	}

	server := fabric.NewRPCServer(a.Conn)
	logger := mctx.LoggerFromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("monitor rpc: delivery channel closed")
			}

			var req StatRequest
			if err := json.Unmarshal(d.Body, &req); err != nil {
				logger.Errorf("monitor rpc: malformed request: %v", err)
				d.Nack(false, false)

				continue
			}

			stat, err := a.Service.Stat(ctx, req.TransactionID)
			if err != nil {
				logger.Errorf("monitor rpc: stat query failed: %v", err)

				if replyErr := server.Reply(ctx, d, map[string]string{"error": err.Error()}); replyErr != nil {
					logger.Errorf("monitor rpc: reply failed: %v", replyErr)
				}

				d.Ack(false)

				continue
			}

			if err := server.Reply(ctx, d, stat); err != nil {
				logger.Errorf("monitor rpc: reply failed: %v", err)
			}

			d.Ack(false)
		}
	}
}
