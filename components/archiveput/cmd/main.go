// Command archive-put bundles completed transfers into tape-sized
// aggregates and streams them to the cold tier (§4.7).
package main

import (
	"context"
	"os"

	"github.com/cedadev/nlds-go/components/archiveput/internal/bootstrap"
	"github.com/cedadev/nlds-go/components/archiveput/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/cedadev/nlds-go/pkg/mzap"
	"github.com/cedadev/nlds-go/pkg/server"
	"github.com/cedadev/nlds-go/pkg/tape"
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
		logger.Fatalf("archive-put: connect to fabric: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	launcher := app.NewLauncher(logger)
	launcher.Add("archive-put", &bootstrap.ArchivePutApp{
		Conn:          conn,
		Logger:        logger,
		QueueName:     cfg.QueueName,
		BinPack:       services.BinPackConfig{MaxAggregateBytes: cfg.MaxAggregateBytes},
		ArchivePut:    services.New(services.Config{ChunkBytes: cfg.ChunkBytes}),
		Tape:          tape.NewFakeClient(), // no production xrootd client in the reference corpus; see pkg/tape
		TapeScheme:    cfg.TapeScheme,
		TapeNetloc:    cfg.TapeNetloc,
		TapeRoot:      cfg.TapeRoot,
		Endpoint:      cfg.ObjectStoreEndpoint,
		Region:        cfg.ObjectStoreRegion,
		RequireSecure: cfg.RequireSecure,
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
	srv := server.NewAdminServer(a.cfg.AdminPort, "archive-put", "dev", l.Logger)
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
