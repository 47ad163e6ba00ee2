package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cedadev/nlds-go/components/catalog/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/mlog"
	amqp "github.com/rabbitmq/amqp091-go"
)

// QueryRequest is the RPC payload for both list-holdings and find-files
// queries; Kind selects which (§4.10, §6 query endpoints). A single queue
// carries both since they share the same request/reply framing and are
// answered by the same read-mostly replica set.
type QueryRequest struct {
	Kind string `json:"kind"` // "holdings" or "files"

	User         string `json:"user"`
	Label        string `json:"label,omitempty"`
	HoldingID    int64  `json:"holding_id,omitempty"`
	TagKey       string `json:"tag_key,omitempty"`
	TagValue     string `json:"tag_value,omitempty"`
	OriginalPath string `json:"original_path,omitempty"`
}

const rpcQueueName = "catalog-query"

// RPCApp answers synchronous list-holdings/find-files queries over the
// fabric's RPC channel, the catalog's read-side counterpart to CatalogApp's
// write side — resolved via the primary/replica-split connection so these
// reads don't compete with write traffic on the primary (§4.10).
type RPCApp struct {
	Conn    *fabric.Connection
	Logger  mlog.Logger
	Service *services.Catalog
}

func (a *RPCApp) Run(ctx context.Context, launcher *app.Launcher) error {
	ch, err := a.Conn.Channel(ctx)
	if err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(rpcQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("catalog rpc: declare queue: %w", err)
	}

	if err := ch.QueueBind(rpcQueueName, "*.catalog-query.query", fabric.ExchangeName, false, nil); err != nil {
		return fmt.Errorf("catalog rpc: bind queue: %w", err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("catalog rpc: set qos: %w", err)
	}

	deliveries, err := ch.Consume(rpcQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("catalog rpc: consume: %w", err)
	}

	server := fabric.NewRPCServer(a.Conn)
	logger := mctx.LoggerFromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("catalog rpc: delivery channel closed")
			}

			a.handle(ctx, server, logger, d)
		}
	}
}

func (a *RPCApp) handle(ctx context.Context, server *fabric.RPCServer, logger mlog.Logger, d amqp.Delivery) {
	var req QueryRequest
	if err := json.Unmarshal(d.Body, &req); err != nil {
		logger.Errorf("catalog rpc: malformed request: %v", err)
		d.Nack(false, false)

		return
	}

	reply, err := a.answer(ctx, req)
	if err != nil {
		logger.Errorf("catalog rpc: query failed: %v", err)

		if replyErr := server.Reply(ctx, d, map[string]string{"error": err.Error()}); replyErr != nil {
			logger.Errorf("catalog rpc: reply failed: %v", replyErr)
		}

		d.Ack(false)

		return
	}

	if err := server.Reply(ctx, d, reply); err != nil {
		logger.Errorf("catalog rpc: reply failed: %v", err)
	}

	d.Ack(false)
}

func (a *RPCApp) answer(ctx context.Context, req QueryRequest) (any, error) {
	switch req.Kind {
	case "holdings":
		return a.Service.ListHoldings(ctx, req.User, req.Label, req.HoldingID, req.TagKey, req.TagValue)
	case "files":
		return a.Service.FindFiles(ctx, services.FindFilesQuery{
			User:         req.User,
			HoldingLabel: req.Label,
			HoldingID:    req.HoldingID,
			OriginalPath: req.OriginalPath,
		})
	default:
		return nil, fmt.Errorf("catalog rpc: unknown query kind %q", req.Kind)
	}
}
