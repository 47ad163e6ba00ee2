// Command catalog runs the relational+tag-map bookkeeping worker behind
// the eight catalog-* operations (§4.4).
package main

import (
	"context"
	"os"

	catmongo "github.com/cedadev/nlds-go/components/catalog/internal/adapters/mongo"
	"github.com/cedadev/nlds-go/components/catalog/internal/adapters/postgres"
	"github.com/cedadev/nlds-go/components/catalog/internal/bootstrap"
	"github.com/cedadev/nlds-go/components/catalog/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/cedadev/nlds-go/pkg/mmongo"
	"github.com/cedadev/nlds-go/pkg/mpostgres"
	"github.com/cedadev/nlds-go/pkg/mzap"
	"github.com/cedadev/nlds-go/pkg/server"
)

func main() {
	cfg, err := bootstrap.Load()
	if err != nil {
		panic(err)
	}

	logger, shutdownLogger := mzap.InitializeLogger(cfg.EnvName, cfg.LogLevel)
	defer shutdownLogger()

	conn := fabric.NewConnection(cfg.FabricURL, logger)
	if err := conn.Connect(context.Background()); err != nil {
		logger.Fatalf("catalog: connect to fabric: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	pg := &mpostgres.Connection{
		PrimaryDSN:    cfg.PostgresDSN,
		MigrationsDir: cfg.MigrationsDir,
		Logger:        logger,
	}
	if err := pg.Connect(context.Background()); err != nil {
		logger.Fatalf("catalog: connect to postgres: %v", err)
		os.Exit(1)
	}

	mg := &mmongo.Connection{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDatabase,
		Logger:   logger,
	}
	if err := mg.Connect(context.Background()); err != nil {
		logger.Fatalf("catalog: connect to mongo: %v", err)
		os.Exit(1)
	}

	catalog := &services.Catalog{
		Holdings:     postgres.NewHoldingRepository(pg),
		Transactions: postgres.NewTransactionRepository(pg),
		Files:        postgres.NewFileRepository(pg),
		Locations:    postgres.NewLocationRepository(pg),
		Aggregations: postgres.NewAggregationRepository(pg),
		Checksums:    postgres.NewChecksumRepository(pg),
		Quotas:       postgres.NewQuotaRepository(pg),
		Tags:         catmongo.NewTagRepository(mg, cfg.MongoDatabase),
	}

	launcher := app.NewLauncher(logger)
	launcher.Add("catalog", &bootstrap.CatalogApp{
		Conn:             conn,
		Logger:           logger,
		QueueName:        cfg.QueueName,
		Service:          catalog,
		ArchiveBatchSize: cfg.ArchiveBatchSize,
	})
	launcher.Add("catalog-rpc", &bootstrap.RPCApp{
		Conn:    conn,
		Logger:  logger,
		Service: catalog,
	})
	launcher.Add("admin-http", httpAdminApp{cfg: cfg, logger: logger})
	launcher.Add("grpc-health", grpcHealthApp{cfg: cfg, logger: logger})

	launcher.Run()
}

type httpAdminApp struct {
	cfg    *bootstrap.Config
	logger mlog.Logger
}

func (a httpAdminApp) Run(ctx context.Context, l *app.Launcher) error {
	srv := server.NewAdminServer(a.cfg.AdminPort, "catalog", "dev", l.Logger)
	return srv.Run(ctx)
}

type grpcHealthApp struct {
	cfg    *bootstrap.Config
	logger mlog.Logger
}

func (a grpcHealthApp) Run(ctx context.Context, l *app.Launcher) error {
	h := server.NewGRPCHealthServer(a.cfg.HealthPort, l.Logger)
	h.MarkServing()

	return h.Run(ctx)
}
