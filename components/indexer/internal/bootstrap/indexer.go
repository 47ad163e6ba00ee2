package bootstrap

import (
	"context"

	"github.com/cedadev/nlds-go/components/indexer/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
)

// IndexerApp handles both index.init (split) and index.start (walk); a
// single generic queue serves any application per the `#.index.init` /
// `#.index.start` bindings in §4.1.
type IndexerApp struct {
	Conn      *fabric.Connection
	Logger    mlog.Logger
	QueueName string
	Split     services.SplitConfig
	Walk      services.WalkConfig
}

func (a *IndexerApp) bindings() []fabric.Binding {
	return []fabric.Binding{
		{RoutingKey: "#.index.init"},
		{RoutingKey: "#.index.start"},
	}
}

func (a *IndexerApp) Run(ctx context.Context, launcher *app.Launcher) error {
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
			logger.Errorf("indexer: unknown state %s", key.State)
			return nlds.ErrUnknownState
		}
	})
}

func (a *IndexerApp) handleInit(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	paths := make([]string, len(env.Data.FileList))
	for i, p := range env.Data.FileList {
		paths[i] = p.OriginalPath
	}

	subs := services.Split(a.Split, env.Details.TransactionID, paths)

	for _, sub := range subs {
		out := env
		out.RoutingKey = key.WithWorkerState(model.WorkerIndex, model.StageStart).String()
		out.Details.SubID = sub.SubID
		out.Data.FileList = make(model.FileList, len(sub.Paths))

		for i, p := range sub.Paths {
			out.Data.FileList[i] = model.PathDetails{OriginalPath: p}
		}

		if err := publisher.Publish(ctx, out); err != nil {
			return err
		}
	}

	return nil
}

func (a *IndexerApp) handleStart(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	walker := services.NewWalker(a.Walk)

	paths := make([]string, len(env.Data.FileList))
	for i, p := range env.Data.FileList {
		paths[i] = p.OriginalPath
	}

	out := walker.Walk(env.Details.User, env.Details.Group, 0, nil, paths)

	for _, batch := range out.Batches {
		complete := env
		complete.RoutingKey = key.WithWorkerState(model.WorkerIndex, model.StageComplete).String()
		complete.Data = model.Data{FileList: batch}

		if err := publisher.Publish(ctx, complete); err != nil {
			return err
		}
	}

	if len(out.Failed) > 0 {
		failed := env
		failed.RoutingKey = key.WithWorkerState(model.WorkerIndex, model.StageFailed).String()
		failed.Data = model.Data{Failed: out.Failed}

		if err := publisher.Publish(ctx, failed); err != nil {
			return err
		}
	}

	return nil
}
