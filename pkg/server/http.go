package server

import (
	"context"
	"time"

	"github.com/cedadev/nlds-go/pkg/mlog"
	"github.com/gofiber/fiber/v2"
)

// AdminServer is the minimal HTTP surface each component exposes on
// admin_port: a liveness probe and a one-line version/status page. It is
// not the client-facing HTTP API, which remains an external collaborator.
type AdminServer struct {
	Addr    string
	Logger  mlog.Logger
	Version string

	app *fiber.App
}

// NewAdminServer builds the Fiber app and registers its routes.
func NewAdminServer(addr, componentName, version string, logger mlog.Logger) *AdminServer {
	fa := fiber.New(fiber.Config{DisableStartupMessage: true})

	fa.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "component": componentName})
	})

	fa.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"component": componentName,
			"version":   version,
			"time":      time.Now().UTC(),
		})
	})

	return &AdminServer{Addr: addr, Logger: logger, Version: version, app: fa}
}

// Run listens and serves until ctx is cancelled.
func (a *AdminServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.Logger.Infof("server: admin http listening on %s", a.Addr)
		errCh <- a.app.Listen(a.Addr)
	}()

	select {
	case <-ctx.Done():
		return a.app.ShutdownWithContext(ctx)
	case err := <-errCh:
		return err
	}
}
