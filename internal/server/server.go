// Package server provides the gRPC surface of the scholar tools service: a
// standard health service reporting one status per paper source.
package server

import (
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/helixir/scholar-tools-service/internal/domain"
	"github.com/helixir/scholar-tools-service/internal/papersources"
)

// ServicePrefix prefixes the per-source health service names.
const ServicePrefix = "scholartools.source."

// SourceServiceName returns the health service name for a paper source.
func SourceServiceName(st domain.SourceType) string {
	return ServicePrefix + string(st)
}

// HealthReporter publishes paper source availability over grpc.health.v1.
// The overall service ("") is SERVING while at least one source is enabled.
type HealthReporter struct {
	health   *health.Server
	registry *papersources.Registry
	logger   zerolog.Logger
}

// NewHealthReporter creates a reporter over the given registry and publishes
// the initial statuses.
func NewHealthReporter(registry *papersources.Registry, logger zerolog.Logger) *HealthReporter {
	h := &HealthReporter{
		health:   health.NewServer(),
		registry: registry,
		logger:   logger.With().Str("component", "grpc-health").Logger(),
	}
	h.Refresh()
	return h
}

// Refresh recomputes every status from the registry.
func (h *HealthReporter) Refresh() {
	anyEnabled := false
	for _, source := range h.registry.AllSources() {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if source.IsEnabled() {
			status = healthpb.HealthCheckResponse_SERVING
			anyEnabled = true
		}
		h.health.SetServingStatus(SourceServiceName(source.SourceType()), status)
		h.logger.Debug().
			Str("source", string(source.SourceType())).
			Str("status", status.String()).
			Msg("source health updated")
	}

	overall := healthpb.HealthCheckResponse_NOT_SERVING
	if anyEnabled {
		overall = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", overall)
}

// Server returns the underlying health server.
func (h *HealthReporter) Server() healthpb.HealthServer {
	return h.health
}

// Shutdown marks every service NOT_SERVING. Later updates are ignored.
func (h *HealthReporter) Shutdown() {
	h.health.Shutdown()
}

// NewGRPCServer builds a gRPC server with the health service and reflection
// registered.
func NewGRPCServer(reporter *HealthReporter) *grpc.Server {
	grpcServer := grpc.NewServer(
		grpc.MaxConcurrentStreams(100),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     15 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Minute,
			Time:                  5 * time.Minute,
			Timeout:               1 * time.Minute,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Minute,
			PermitWithoutStream: true,
		}),
	)

	healthpb.RegisterHealthServer(grpcServer, reporter.Server())
	reflection.Register(grpcServer)
	return grpcServer
}
