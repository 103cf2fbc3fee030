package transportgrpc

import (
	"context"
	"net"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/GreenityClub/Unitree-sub000/internal/transport/grpc/interceptors"
)

// ServiceName is the health-check service reported alongside the overall server status.
const ServiceName = "unitree.wifi"

const checkTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// ServerDependencies encapsulates what the gRPC server layer needs.
type ServerDependencies struct {
	Logger         *zap.Logger
	Metrics        *grpcinterceptors.GRPCMetrics
	TracerProvider trace.TracerProvider
	Checks         map[string]HealthCheck
}

// Server exposes the standard gRPC health protocol backed by dependency checks.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	checks map[string]HealthCheck
	logger *zap.Logger
}

// NewServer wires the health and reflection services behind the tracing and metrics interceptors.
func NewServer(deps ServerDependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tracing := grpcinterceptors.NewTracingInterceptor(grpcinterceptors.TracingOptions{TracerProvider: deps.TracerProvider})
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(tracing.Unary(), deps.Metrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(tracing.Stream(), deps.Metrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	// Register reflection service for tools like Postman, grpcurl, etc.
	reflection.Register(server)

	return &Server{grpc: server, health: healthServer, checks: deps.Checks, logger: logger}
}

// GRPC returns the underlying server.
func (s *Server) GRPC() *grpc.Server {
	return s.grpc
}

// Serve accepts connections until the listener closes.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// Refresh runs every check once and publishes the aggregate status.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			s.logger.Warn("grpc health check failed", zap.String("check", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// WatchHealth refreshes the health status on every tick until ctx is cancelled.
func (s *Server) WatchHealth(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// GracefulStop flips every service to NOT_SERVING and drains in-flight calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
