package bootstrap

import (
	"context"
	"time"

	"github.com/cedadev/nlds-go/components/archiveget/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/cedadev/nlds-go/pkg/model"
	"github.com/cedadev/nlds-go/pkg/nlds"
	"github.com/cedadev/nlds-go/pkg/objectstore"
	"github.com/cedadev/nlds-go/pkg/tape"
)

// ArchiveGetApp handles archive-get's three sub-states: prepare (request
// tape staging), prepare-check (poll, re-emitting itself on a delay until
// staging finishes), and start (extract + re-upload) (§4.8).
type ArchiveGetApp struct {
	Conn             *fabric.Connection
	Logger           mlog.Logger
	QueueName        string
	ArchiveGet       *services.ArchiveGet
	TapeScheme       string
	TapeNetloc       string
	TapeRoot         string
	Endpoint         string
	Region           string
	RequireSecure    bool
	PrepareCheckWait time.Duration
}

func (a *ArchiveGetApp) bindings() []fabric.Binding {
	return []fabric.Binding{
		{RoutingKey: "*.archive-get.prepare"},
		{RoutingKey: "*.archive-get.prepare-check"},
		{RoutingKey: "*.archive-get.start"},
	}
}

func (a *ArchiveGetApp) aggregateURL(agg model.Aggregate) string {
	return tape.URL(a.TapeScheme, a.TapeNetloc, a.TapeRoot, agg.TarName)
}

func (a *ArchiveGetApp) Run(ctx context.Context, launcher *app.Launcher) error {
	publisher := fabric.NewPublisher(a.Conn)
	consumer := fabric.NewConsumer(a.Conn, a.Logger, a.QueueName, a.bindings(), 1)

	return consumer.Run(ctx, func(ctx context.Context, env model.Envelope) error {
		logger := mctx.LoggerFromContext(ctx)

		key, err := model.ParseRoutingKey(env.RoutingKey)
		if err != nil {
			return nlds.Wrap(nlds.KindProtocol, "Message", err)
		}

		switch key.State {
		case model.StagePrepare:
			return a.handlePrepare(ctx, publisher, key, env)
		case model.StagePrepareCheck:
			return a.handlePrepareCheck(ctx, publisher, key, env)
		case model.StageStart:
			return a.handleStart(ctx, publisher, key, env)
		default:
			logger.Errorf("archive-get: unexpected state %s", key.State)
			return nlds.ErrUnknownState
		}
	})
}

func (a *ArchiveGetApp) handlePrepare(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	result, err := a.ArchiveGet.Prepare(ctx, a.aggregateURL, env.Data.Aggregates)
	if err != nil {
		return err
	}

	if len(result.Ready) > 0 {
		if err := a.publishStart(ctx, publisher, key, env, result.Ready); err != nil {
			return err
		}
	}

	if len(result.Pending) > 0 {
		if err := a.publishPrepareCheck(ctx, publisher, key, env, result.Pending); err != nil {
			return err
		}
	}

	return nil
}

func (a *ArchiveGetApp) handlePrepareCheck(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	ids := make([]string, 0, len(env.Data.Aggregates))
	for _, agg := range env.Data.Aggregates {
		ids = append(ids, agg.PrepareID)
	}

	result, err := a.ArchiveGet.PrepareCheck(ctx, ids)
	if err != nil {
		return err
	}

	if len(result.Ready) > 0 {
		if err := a.publishStart(ctx, publisher, key, env, result.Ready); err != nil {
			return err
		}
	}

	if len(result.StillPending) > 0 {
		if err := a.publishPrepareCheck(ctx, publisher, key, env, result.StillPending); err != nil {
			return err
		}
	}

	return nil
}

func (a *ArchiveGetApp) handleStart(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	store := objectstore.NewClient(objectstore.Config{
		Endpoint:      a.Endpoint,
		Region:        a.Region,
		AccessKey:     env.Details.AccessKey,
		SecretKey:     env.Details.SecretKey,
		Bucket:        env.Details.Tenancy,
		RequireSecure: a.RequireSecure,
	})

	var transferred model.FileList

	var failed model.FileList

	for _, agg := range env.Data.Aggregates {
		result := a.ArchiveGet.Start(ctx, store, a.aggregateURL(agg), env.Details.TransactionID, agg)
		transferred = append(transferred, result.Transferred...)
		failed = append(failed, result.Failed...)
	}

	if len(transferred) > 0 {
		complete := env
		complete.RoutingKey = key.WithWorkerState(model.WorkerArchiveGet, model.StageComplete).String()
		complete.Data = model.Data{Completed: transferred}

		if err := publisher.Publish(ctx, complete); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		failedEnv := env
		failedEnv.RoutingKey = key.WithWorkerState(model.WorkerArchiveGet, model.StageFailed).String()
		failedEnv.Data = model.Data{Failed: failed}

		if err := publisher.Publish(ctx, failedEnv); err != nil {
			return err
		}
	}

	return nil
}

func (a *ArchiveGetApp) publishStart(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope, aggregates []model.Aggregate) error {
	out := env
	out.RoutingKey = key.WithWorkerState(model.WorkerArchiveGet, model.StageStart).String()
	out.Data = model.Data{Aggregates: aggregates}

	return publisher.Publish(ctx, out)
}

func (a *ArchiveGetApp) publishPrepareCheck(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope, prepareIDs []string) error {
	aggregates := make([]model.Aggregate, 0, len(prepareIDs))
	for _, id := range prepareIDs {
		aggregates = append(aggregates, model.Aggregate{PrepareID: id})
	}

	out := env
	out.RoutingKey = key.WithWorkerState(model.WorkerArchiveGet, model.StagePrepareCheck).String()
	out.Data = model.Data{Aggregates: aggregates}

	return publisher.PublishDelayed(ctx, out, a.PrepareCheckWait)
}
