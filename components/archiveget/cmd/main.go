// Command archive-get stages tape aggregates back onto fast storage and
// streams their members into the object store for transfer-get to pick
// up (§4.8).
package main

import (
	"context"
	"os"
	"time"

	archiveredis "github.com/cedadev/nlds-go/components/archiveget/internal/adapters/redis"
	"github.com/cedadev/nlds-go/components/archiveget/internal/bootstrap"
	"github.com/cedadev/nlds-go/components/archiveget/internal/services"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/cedadev/nlds-go/pkg/mredis"
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
		logger.Fatalf("archive-get: connect to fabric: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	redisConn := &mredis.Connection{URL: cfg.RedisURL, Logger: logger}
	pending := archiveredis.NewPendingStore(redisConn)

	launcher := app.NewLauncher(logger)
	launcher.Add("archive-get", &bootstrap.ArchiveGetApp{
		Conn:      conn,
		Logger:    logger,
		QueueName: cfg.QueueName,
		ArchiveGet: &services.ArchiveGet{
			Tape:    tape.NewFakeClient(), // no production xrootd client in the reference corpus; see pkg/tape
			Pending: pending,
		},
		TapeScheme:       cfg.TapeScheme,
		TapeNetloc:       cfg.TapeNetloc,
		TapeRoot:         cfg.TapeRoot,
		Endpoint:         cfg.ObjectStoreEndpoint,
		Region:           cfg.ObjectStoreRegion,
		RequireSecure:    cfg.RequireSecure,
		PrepareCheckWait: time.Duration(cfg.PrepareCheckWaitMS) * time.Millisecond,
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
	srv := server.NewAdminServer(a.cfg.AdminPort, "archive-get", "dev", l.Logger)
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
