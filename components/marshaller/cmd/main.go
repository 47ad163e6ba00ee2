// Command marshaller runs the stateless routing worker: one consumer per
// process, scaled horizontally by running more replicas (§5).
package main

import (
	"context"
	"os"

	"github.com/cedadev/nlds-go/components/marshaller/internal/bootstrap"
	"github.com/cedadev/nlds-go/pkg/app"
	"github.com/cedadev/nlds-go/pkg/fabric"
	"github.com/cedadev/nlds-go/pkg/mlog"
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
		logger.Fatalf("marshaller: connect to fabric: %v", err)
		os.Exit(1)
	}
	defer conn.Close()

	launcher := app.NewLauncher(logger)
	launcher.Add("marshaller", &bootstrap.MarshallerApp{Conn: conn, Logger: logger, QueueName: cfg.QueueName})
	launcher.Add("admin-http", httpAdminApp{cfg: cfg, logger: logger})
	launcher.Add("grpc-health", grpcHealthApp{cfg: cfg, logger: logger})

	launcher.Run()
}

type httpAdminApp struct {
	cfg    *bootstrap.Config
	logger mlog.Logger
}

func (a httpAdminApp) Run(ctx context.Context, l *app.Launcher) error {
	srv := server.NewAdminServer(a.cfg.AdminPort, "marshaller", "dev", l.Logger)
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
