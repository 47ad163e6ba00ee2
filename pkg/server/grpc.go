// Package server provides the admin-facing surfaces every component
// exposes: a gRPC health endpoint for orchestrator liveness/readiness
// probes, and a minimal Fiber HTTP server for the admin_port configuration
// key (§6). Neither is the client-facing HTTP API — that remains an
// external collaborator per §1.
package server

import (
	"context"
	"fmt"
	"net"

	"github.com/cedadev/nlds-go/pkg/mlog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthServer runs a gRPC server exposing only the standard health
// service, so an orchestrator can probe a component's liveness without
// this repository needing to hand-author any protobuf service definitions
// of its own.
type GRPCHealthServer struct {
	Addr   string
	Logger mlog.Logger

	health *health.Server
	srv    *grpc.Server
}

// NewGRPCHealthServer builds a health server serving at addr, initially
// reporting NOT_SERVING until MarkServing is called.
func NewGRPCHealthServer(addr string, logger mlog.Logger) *GRPCHealthServer {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, h)

	return &GRPCHealthServer{Addr: addr, Logger: logger, health: h, srv: s}
}

// MarkServing flips the default "" service to SERVING, meant to be called
// once the component has finished connecting to its dependencies.
func (g *GRPCHealthServer) MarkServing() {
	g.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}

// MarkNotServing flips the default service back to NOT_SERVING, e.g. when a
// dependency connection is lost.
func (g *GRPCHealthServer) MarkNotServing() {
	g.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
}

// Run listens and serves until ctx is cancelled.
func (g *GRPCHealthServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", g.Addr)
	if err != nil {
		return fmt.Errorf("server: grpc health listen: %w", err)
	}

	errCh := make(chan error, 1)

	go func() {
		g.Logger.Infof("server: grpc health listening on %s", g.Addr)
		errCh <- g.srv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		g.srv.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
