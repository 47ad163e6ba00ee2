package bootstrap

import (
	"context"

	"github.com/cedadev/nlds-go/components/transferget/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
	"github.com/cedadev/nlds-go/pkg/objectstore"
)

// TransferGetApp handles both transfer-get.init (chunk) and
// transfer-get.start (restore) (§4.6).
type TransferGetApp struct {
	Conn          *fabric.Connection
	Logger        mlog.Logger
	QueueName     string
	Transfer      *services.Transfer
	Chunk         services.ChunkConfig
	Endpoint      string
	Region        string
	RequireSecure bool
}

func (a *TransferGetApp) bindings() []fabric.Binding {
	return []fabric.Binding{
		{RoutingKey: "*.transfer-get.init"},
		{RoutingKey: "*.transfer-get.start"},
	}
}

func (a *TransferGetApp) Run(ctx context.Context, launcher *app.Launcher) error {
	publisher := fabric.NewPublisher(a.Conn)
	consumer := fabric.NewConsumer(a.Conn, a.Logger, a.QueueName, a.bindings(), 1)

	return consumer.Run(ctx, func(ctx context.Context, env model.Envelope) error {
		logger := mctx.LoggerFromContext(ctx)

		key, err := model.ParseRoutingKey(env.RoutingKey)
		if err != nil {
			return nlds.Wrap(nlds.KindProtocol, "Message", err)
		}

		switch key.State {
		case model.StageInit:
			return a.handleInit(ctx, publisher, key, env)
		case model.StageStart:
			return a.handleStart(ctx, publisher, key, env)
		default:
			logger.Errorf("transfer-get: unexpected state %s", key.State)
			return nlds.ErrUnknownState
		}
	})
}

func (a *TransferGetApp) handleInit(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	for _, sublist := range services.Chunk(a.Chunk, env.Data.FileList) {
		out := env
		out.RoutingKey = key.WithWorkerState(model.WorkerTransferGet, model.StageStart).String()
		out.Data = model.Data{FileList: sublist}

		if err := publisher.Publish(ctx, out); err != nil {
			return err
		}
	}

	return nil
}

func (a *TransferGetApp) handleStart(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	store := objectstore.NewClient(objectstore.Config{
		Endpoint:      a.Endpoint,
		Region:        a.Region,
		AccessKey:     env.Details.AccessKey,
		SecretKey:     env.Details.SecretKey,
		Bucket:        env.Details.Tenancy,
		RequireSecure: a.RequireSecure,
	})

	files := make(model.FileList, len(env.Data.FileList))
	copy(files, env.Data.FileList)

	for i, pd := range files {
		if pd.ObjectName == "" && !pd.IsSymlink() {
			files[i].ObjectName = objectstore.ObjectName(env.Details.TransactionID, pd.OriginalPath)
		}
	}

	result := a.Transfer.Get(ctx, store, env.Details.Target, files)

	if len(result.Completed) > 0 {
		complete := env
		complete.RoutingKey = key.WithWorkerState(model.WorkerTransferGet, model.StageComplete).String()
		complete.Data = model.Data{Completed: result.Completed}

		if err := publisher.Publish(ctx, complete); err != nil {
			return err
		}
	}

	if len(result.Failed) > 0 {
		failed := env
		failed.RoutingKey = key.WithWorkerState(model.WorkerTransferGet, model.StageFailed).String()
		failed.Data = model.Data{Failed: result.Failed}

		if err := publisher.Publish(ctx, failed); err != nil {
			return err
		}
	}

	return nil
}
