package bootstrap

import (
	"context"

	catsvc "github.com/cedadev/nlds-go/components/catalog/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mctx"
	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/cedadev/nlds-go/pkg/model"
)

// CatalogApp serialises all eight catalog operations through one
// single-consumer queue to avoid write races on the relational store
// (§4.4).
type CatalogApp struct {
	Conn             *fabric.Connection
	Logger           mlog.Logger
	QueueName        string
	Service          *catsvc.Catalog
	ArchiveBatchSize int
}

func (a *CatalogApp) bindings() []fabric.Binding {
	return []fabric.Binding{
		{RoutingKey: "*.catalog-put.start"},
		{RoutingKey: "*.catalog-get.start"},
		{RoutingKey: "*.catalog-del.start"},
		{RoutingKey: "*.catalog-archive-next.start"},
		{RoutingKey: "*.catalog-archive-update.start"},
		{RoutingKey: "*.catalog-archive-del.start"},
		{RoutingKey: "*.catalog-remove.start"},
		{RoutingKey: "*.catalog-update.start"},
	}
}

func (a *CatalogApp) Run(ctx context.Context, launcher *app.Launcher) error {
	publisher := fabric.NewPublisher(a.Conn)
	consumer := fabric.NewConsumer(a.Conn, a.Logger, a.QueueName, a.bindings(), 1)

	return consumer.Run(ctx, func(ctx context.Context, env model.Envelope) error {
		logger := mctx.LoggerFromContext(ctx).WithFields("transaction_id", env.Details.TransactionID, "sub_id", env.Details.SubID)

		key, err := model.ParseRoutingKey(env.RoutingKey)
		if err != nil {
			return err
		}

		switch key.Worker {
		case model.WorkerCatalogPut:
			return a.handlePut(ctx, publisher, key, env)
		case model.WorkerCatalogGet:
			return a.handleGet(ctx, publisher, key, env)
		case model.WorkerCatalogUpdate:
			return a.handleUpdate(ctx, publisher, key, env)
		case model.WorkerCatalogDel:
			return a.handleDel(ctx, publisher, key, env)
		case model.WorkerCatalogRemove:
			return a.handleRemove(ctx, publisher, key, env)
		case model.WorkerCatalogArchiveNext:
			return a.handleArchiveNext(ctx, publisher, key, env)
		case model.WorkerCatalogArchiveUpdate:
			return a.handleArchiveUpdate(ctx, publisher, key, env)
		case model.WorkerCatalogArchiveDel:
			return a.handleArchiveDel(ctx, publisher, key, env)
		default:
			logger.Errorf("catalog: unrecognised worker %s", key.Worker)
			return nil
		}
	})
}

func (a *CatalogApp) handlePut(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	result, err := a.Service.Put(ctx, env.Details, env.Data.FileList)
	if err != nil {
		return err
	}

	out := env
	out.Data = model.Data{Completed: result.Completed, Failed: result.Failed}
	out.RoutingKey = key.WithWorkerState(model.WorkerCatalogPut, model.StageComplete).String()

	return publisher.Publish(ctx, out)
}

func (a *CatalogApp) handleGet(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	paths := make([]string, len(env.Data.FileList))
	for i, p := range env.Data.FileList {
		paths[i] = p.OriginalPath
	}

	result, err := a.Service.Get(ctx, env.Details, paths)
	if err != nil {
		return err
	}

	out := env
	out.Data = model.Data{Completed: result.Resolved}

	if result.NeedsRestore {
		out.RoutingKey = key.WithWorkerState(model.WorkerCatalogGet, model.StageArchiveRestore).String()
	} else {
		out.RoutingKey = key.WithWorkerState(model.WorkerCatalogGet, model.StageComplete).String()
	}

	return publisher.Publish(ctx, out)
}

func (a *CatalogApp) handleUpdate(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	if err := a.Service.Update(ctx, env.Details, env.Data.FileList); err != nil {
		return err
	}

	out := env
	out.RoutingKey = key.WithWorkerState(model.WorkerCatalogUpdate, model.StageComplete).String()

	return publisher.Publish(ctx, out)
}

func (a *CatalogApp) handleDel(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	if err := a.Service.Del(ctx, env.Details, env.Data.FileList); err != nil {
		return err
	}

	out := env
	out.RoutingKey = key.WithWorkerState(model.WorkerCatalogDel, model.StageComplete).String()

	return publisher.Publish(ctx, out)
}

func (a *CatalogApp) handleRemove(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	if err := a.Service.Remove(ctx, env.Details, env.Data.FileList); err != nil {
		return err
	}

	out := env
	out.RoutingKey = key.WithWorkerState(model.WorkerCatalogRemove, model.StageComplete).String()

	return publisher.Publish(ctx, out)
}

func (a *CatalogApp) handleArchiveNext(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	result, err := a.Service.ArchiveNext(ctx, a.ArchiveBatchSize)
	if err != nil {
		return err
	}

	out := env
	out.Data = model.Data{Completed: result.Files}
	out.RoutingKey = key.WithWorkerState(model.WorkerCatalogArchiveNext, model.StageComplete).String()

	return publisher.Publish(ctx, out)
}

func (a *CatalogApp) handleArchiveUpdate(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	for _, agg := range env.Data.Aggregates {
		if err := a.Service.ArchiveUpdate(ctx, env.Details, agg, "tape", env.Details.Tenancy, env.Details.TransactionID); err != nil {
			return err
		}
	}

	out := env
	out.RoutingKey = key.WithWorkerState(model.WorkerCatalogArchiveUpdate, model.StageComplete).String()

	return publisher.Publish(ctx, out)
}

func (a *CatalogApp) handleArchiveDel(ctx context.Context, publisher *fabric.Publisher, key model.RoutingKey, env model.Envelope) error {
	if err := a.Service.ArchiveDel(ctx, env.Details, env.Data.Failed); err != nil {
		return err
	}

	out := env
	out.RoutingKey = key.WithWorkerState(model.WorkerCatalogArchiveDel, model.StageComplete).String()

	return publisher.Publish(ctx, out)
}
