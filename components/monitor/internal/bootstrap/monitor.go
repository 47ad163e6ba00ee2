package bootstrap

import (
	"context"

	monsvc "github.com/cedadev/nlds-go/components/monitor/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/cedadev/nlds-go/pkg/model"
)

// MonitorApp consumes every stage's monitor-put/monitor-get update and
// applies it as a ratcheted SubRecord transition. The envelope's Meta
// carries "state" (the model.SubRecordState the emitting stage reached)
// and, on failure, a "failed_reasons" map[string]string keyed by
// original_path — every stage annotates its own completion message this
// way before handing off to the marshaller (§4.9).
type MonitorApp struct {
	Conn      *fabric.Connection
	Logger    mlog.Logger
	QueueName string
	Service   *monsvc.Monitor
}

func (a *MonitorApp) bindings() []fabric.Binding {
	return []fabric.Binding{
		{RoutingKey: "*.monitor-put.start"},
		{RoutingKey: "*.monitor-get.start"},
	}
}

func (a *MonitorApp) Run(ctx context.Context, launcher *app.Launcher) error {
	consumer := fabric.NewConsumer(a.Conn, a.Logger, a.QueueName, a.bindings(), 1)

	return consumer.Run(ctx, func(ctx context.Context, env model.Envelope) error {
		logger := mctx.LoggerFromContext(ctx).WithFields("transaction_id", env.Details.TransactionID, "sub_id", env.Details.SubID)

		state, _ := env.Meta["state"].(string)
		if state == "" {
			logger.Warnf("monitor: update with no state, dropping")
			return nil
		}

		failedReasons := map[string]string{}

		if raw, ok := env.Meta["failed_reasons"].(map[string]any); ok {
			for k, v := range raw {
				if s, ok := v.(string); ok {
					failedReasons[k] = s
				}
			}
		}

		return a.Service.RecordUpdate(ctx, env.Details, model.SubRecordState(state), failedReasons)
	})
}
