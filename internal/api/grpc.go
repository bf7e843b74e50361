package api

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCHealthServer serves grpc.health.v1.Health, reporting SERVING once the dashboard is ready
type GRPCHealthServer struct {
	serviceName  string
	server       *grpc.Server
	health       *health.Server
	ready        func() bool
	pollInterval time.Duration
	logger       *logrus.Logger
}

// NewGRPCHealthServer creates a health server whose status follows ready
func NewGRPCHealthServer(serviceName string, ready func() bool, log *logrus.Logger) *GRPCHealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)

	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	return &GRPCHealthServer{
		serviceName:  serviceName,
		server:       server,
		health:       hs,
		ready:        ready,
		pollInterval: 2 * time.Second,
		logger:       log,
	}
}

// Sync updates the serving status from the readiness function
func (g *GRPCHealthServer) Sync() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if g.ready != nil && g.ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(g.serviceName, status)
}

// Serve serves on lis until ctx is cancelled
func (g *GRPCHealthServer) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		ticker := time.NewTicker(g.pollInterval)
		defer ticker.Stop()
		for {
			g.Sync()
			select {
			case <-ctx.Done():
				g.health.Shutdown()
				g.server.GracefulStop()
				return
			case <-ticker.C:
			}
		}
	}()

	if g.logger != nil {
		g.logger.WithField("addr", lis.Addr().String()).Info("gRPC health server starting")
	}
	if err := g.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}

// Start listens on port and serves in the background
func (g *GRPCHealthServer) Start(ctx context.Context, port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port %d: %w", port, err)
	}

	go func() {
		if err := g.Serve(ctx, lis); err != nil && g.logger != nil {
			g.logger.WithError(err).Error("gRPC health server error")
		}
	}()
	return nil
}
