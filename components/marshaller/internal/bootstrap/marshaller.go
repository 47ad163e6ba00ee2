package bootstrap

import (
	"context"
	"time"

	marsvc "github.com/cedadev/nlds-go/components/marshaller/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/cedadev/nlds-go/pkg/model"
)

// MarshallerApp is the stateless routing worker: one fabric consumer that
// computes the next stage via services.Transition and republishes.
type MarshallerApp struct {
	Conn      *fabric.Connection
	Logger    mlog.Logger
	QueueName string
}

// Bindings matches the "nlds (marshaller)" queue row in §4.1.
func (m *MarshallerApp) bindings() []fabric.Binding {
	return []fabric.Binding{
		{RoutingKey: "nlds-api.route.*"},
		{RoutingKey: "nlds-api.*.complete"},
		{RoutingKey: "nlds-api.*.reroute"},
		{RoutingKey: "nlds-api.*.failed"},
		{RoutingKey: "nlds-api.catalog-get.archive-restore"},
	}
}

func (m *MarshallerApp) Run(ctx context.Context, launcher *app.Launcher) error {
	publisher := fabric.NewPublisher(m.Conn)
	consumer := fabric.NewConsumer(m.Conn, m.Logger, m.QueueName, m.bindings(), 1)

	return consumer.Run(ctx, func(ctx context.Context, env model.Envelope) error {
		logger := mctx.LoggerFromContext(ctx).WithFields("transaction_id", env.Details.TransactionID, "sub_id", env.Details.SubID)

		next, ok, err := marsvc.Transition(env)
		if err != nil {
			logger.Errorf("marshaller: %v", err)
			return err
		}

		if !ok {
			logger.Infof("marshaller: terminal state for %s, no follow-on", env.RoutingKey)
			return nil
		}

		out := env
		out.RoutingKey = next.String()

		return publisher.PublishDelayed(ctx, out, 0*time.Second)
	})
}
