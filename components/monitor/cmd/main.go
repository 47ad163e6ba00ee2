// Command monitor runs the ratcheted progress tracker: one consumer
// applying sub-transaction state updates, and one RPC responder
// answering synchronous stat queries (§4.9, §4.10).
package main

import (
	"context"
	"os"

	"github.com/cedadev/nlds-go/components/monitor/internal/adapters/postgres"
	"github.com/cedadev/nlds-go/components/monitor/internal/bootstrap"
	"github.com/cedadev/nlds-go/components/monitor/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mlog"
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
		logger.Fatalf("monitor: connect to fabric: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	pg := &mpostgres.Connection{
		PrimaryDSN:    cfg.PostgresDSN,
		MigrationsDir: cfg.MigrationsDir,
		Logger:        logger,
	}
	if err := pg.Connect(context.Background()); err != nil {
		logger.Fatalf("monitor: connect to postgres: %v", err)
		os.Exit(1)
	}

	monitor := &services.Monitor{
		Transactions: postgres.NewTransactionRepository(pg),
		SubRecords:   postgres.NewSubRecordRepository(pg),
		FailedFiles:  postgres.NewFailedFileRepository(pg),
		Warnings:     postgres.NewWarningRepository(pg),
	}

	launcher := app.NewLauncher(logger)
	launcher.Add("monitor", &bootstrap.MonitorApp{Conn: conn, Logger: logger, QueueName: cfg.QueueName, Service: monitor})
	launcher.Add("monitor-rpc", &bootstrap.RPCApp{Conn: conn, Logger: logger, Service: monitor})
	launcher.Add("admin-http", httpAdminApp{cfg: cfg, logger: logger})
	launcher.Add("grpc-health", grpcHealthApp{cfg: cfg, logger: logger})

	launcher.Run()
}

type httpAdminApp struct {
	cfg    *bootstrap.Config
	logger mlog.Logger
}

func (a httpAdminApp) Run(ctx context.Context, l *app.Launcher) error {
	srv := server.NewAdminServer(a.cfg.AdminPort, "monitor", "dev", l.Logger)
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
