package bootstrap

import (
	"context"

	"github.com/cedadev/nlds-go/components/transferput/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
	"github.com/cedadev/nlds-go/pkg/objectstore"
)

// TransferPutApp handles transfer-put.start: stream a batch of PathDetails
// to the object store under the envelope's tenancy (§4.5).
type TransferPutApp struct {
	Conn          *fabric.Connection
	Logger        mlog.Logger
	QueueName     string
	Transfer      *services.Transfer
	Endpoint      string
	Region        string
	RequireSecure bool
}

func (a *TransferPutApp) bindings() []fabric.Binding {
	return []fabric.Binding{{RoutingKey: "*.transfer-put.start"}}
}

func (a *TransferPutApp) Run(ctx context.Context, launcher *app.Launcher) error {
	publisher := fabric.NewPublisher(a.Conn)
	consumer := fabric.NewConsumer(a.Conn, a.Logger, a.QueueName, a.bindings(), 1)

	return consumer.Run(ctx, func(ctx context.Context, env model.Envelope) error {
		logger := mctx.LoggerFromContext(ctx)

		key, err := model.ParseRoutingKey(env.RoutingKey)
		if err != nil {
			return nlds.Wrap(nlds.KindProtocol, "Message", err)
		}

		if key.State != model.StageStart {
			logger.Errorf("transfer-put: unexpected state %s", key.State)
			return nlds.ErrUnknownState
		}

		store := objectstore.NewClient(objectstore.Config{
			Endpoint:      a.Endpoint,
			Region:        a.Region,
			AccessKey:     env.Details.AccessKey,
			SecretKey:     env.Details.SecretKey,
			Bucket:        env.Details.Tenancy,
			RequireSecure: a.RequireSecure,
		})

		result := a.Transfer.Put(ctx, store, env.Details.TransactionID, env.Data.FileList)

		if len(result.Completed) > 0 {
			complete := env
			complete.RoutingKey = key.WithWorkerState(model.WorkerTransferPut, model.StageComplete).String()
			complete.Data = model.Data{Completed: result.Completed}

			if err := publisher.Publish(ctx, complete); err != nil {
				return err
			}
		}

		if len(result.Failed) > 0 {
			failed := env
			failed.RoutingKey = key.WithWorkerState(model.WorkerTransferPut, model.StageFailed).String()
			failed.Data = model.Data{Failed: result.Failed}

			if err := publisher.Publish(ctx, failed); err != nil {
				return err
			}
		}

		return nil
	})
}
