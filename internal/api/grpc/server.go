// Package grpc exposes the standard gRPC health service for the ledger and
// its dependencies.
package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"reseller-ledger-backend/internal/api/grpc/interceptor"
	"reseller-ledger-backend/internal/logger"
)

// LedgerService is the health service name reported for the ledger API as a
// whole. The empty name reports overall server health.
const LedgerService = "reseller.ledger.v1.Ledger"

// Check probes one dependency, such as the database or the history store.
type Check func(ctx context.Context) error

type Server struct {
	server *grpc.Server
	health *health.Server
	checks map[string]Check
}

func NewServer(checks map[string]Check) *Server {
	s := grpc.NewServer(
		grpc.UnaryInterceptor(interceptor.Unary()),
		grpc.StreamInterceptor(interceptor.Stream()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	// Register reflection service for grpcurl
	reflection.Register(s)

	srv := &Server{server: s, health: hs, checks: checks}
	for name := range checks {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_UNKNOWN)
	}
	hs.SetServingStatus(LedgerService, healthpb.HealthCheckResponse_SERVING)
	return srv
}

func (s *Server) GRPC() *grpc.Server {
	return s.server
}

// Probe runs every check once and publishes the results. The ledger service
// is SERVING only while all checks pass.
func (s *Server) Probe(ctx context.Context) {
	healthy := true
	for name, check := range s.checks {
		status := healthpb.HealthCheckResponse_SERVING
		if err := check(ctx); err != nil {
			logger.Warn("Health check failed", "check", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
			healthy = false
		}
		s.health.SetServingStatus(name, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)
	s.health.SetServingStatus(LedgerService, overall)
}

// Watch probes every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

// Stop marks everything NOT_SERVING and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
