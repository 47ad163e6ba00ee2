package bootstrap

import (
	"context"

	"github.com/cedadev/nlds-go/components/archiveput/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
	"github.com/cedadev/nlds-go/pkg/objectstore"
	"github.com/cedadev/nlds-go/pkg/tape"
)

// ArchivePutApp handles both archive-put.init (bin-pack) and
// archive-put.start (bundle+stream to tape) (§4.7).
type ArchivePutApp struct {
	Conn          *fabric.Connection
	Logger        mlog.Logger
	QueueName     string
	BinPack       services.BinPackConfig
	ArchivePut    *services.ArchivePut
	Tape          tape.Client
	TapeScheme    string
	TapeNetloc    string
	TapeRoot      string
	Endpoint      string
	Region        string
	RequireSecure bool
}

func (a *ArchivePutApp) bindings() []fabric.Binding {
	return []fabric.Binding{
		{RoutingKey: "*.archive-put.init"},
		{RoutingKey: "*.archive-put.start"},
	}
}

func (a *ArchivePutApp) Run(ctx context.Context, launcher *app.Launcher) error {
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
			logger.Errorf("archive-put: unexpected state %s", key.State)
			return nlds.ErrUnknownState
		}
	})
}

func (a *ArchivePutApp) handleInit(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	for _, agg := range services.BinPack(a.BinPack, env.Data.FileList) {
		out := env
		out.RoutingKey = key.WithWorkerState(model.WorkerArchivePut, model.StageStart).String()
		out.Data = model.Data{Aggregates: []model.Aggregate{agg}}

		if err := publisher.Publish(ctx, out); err != nil {
			return err
		}
	}

	return nil
}

func (a *ArchivePutApp) handleStart(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	store := objectstore.NewClient(objectstore.Config{
		Endpoint:      a.Endpoint,
		Region:        a.Region,
		AccessKey:     env.Details.AccessKey,
		SecretKey:     env.Details.SecretKey,
		Bucket:        env.Details.Tenancy,
		RequireSecure: a.RequireSecure,
	})

	var completed []model.Aggregate

	var failedFiles model.FileList

	for _, agg := range env.Data.Aggregates {
		aggregateURL := tape.URL(a.TapeScheme, a.TapeNetloc, a.TapeRoot, agg.TarName)

		result := a.ArchivePut.Put(ctx, store, a.Tape, aggregateURL, agg)
		if result.WholeFailed {
			failedFiles = append(failedFiles, agg.Members...)
			continue
		}

		completed = append(completed, result.Aggregate)
		failedFiles = append(failedFiles, result.Failed...)
	}

	if len(completed) > 0 {
		complete := env
		complete.RoutingKey = key.WithWorkerState(model.WorkerArchivePut, model.StageComplete).String()
		complete.Data = model.Data{Aggregates: completed}

		if err := publisher.Publish(ctx, complete); err != nil {
			return err
		}
	}

	if len(failedFiles) > 0 {
		failed := env
		failed.RoutingKey = key.WithWorkerState(model.WorkerArchivePut, model.StageFailed).String()
		failed.Data = model.Data{Failed: failedFiles}

		if err := publisher.Publish(ctx, failed); err != nil {
			return err
		}
	}

	return nil
}
