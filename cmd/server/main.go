// Package main provides the entry point for the scholar tools service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"github.com/helixir/scholar-tools-service/internal/bootstrap"
	"github.com/helixir/scholar-tools-service/internal/config"
	"github.com/helixir/scholar-tools-service/internal/domain"
	"github.com/helixir/scholar-tools-service/internal/observability"
	"github.com/helixir/scholar-tools-service/internal/papersources"
	"github.com/helixir/scholar-tools-service/internal/server"
	httpserver "github.com/helixir/scholar-tools-service/internal/server/http"
)

const metricsNamespace = "scholar_tools"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = observability.WithComponent(logger, "server")
	logger.Info().Msg("scholar-tools-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics go to a dedicated registry served on the metrics port.
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var (
		recorder httpserver.Recorder
		observer papersources.RequestObserver = papersources.NopObserver{}
	)
	if cfg.Metrics.Enabled {
		metrics := observability.NewMetrics(metricsNamespace, reg)
		recorder = metrics
		observer = metrics
	}

	registry := bootstrap.NewRegistry(cfg, observer, logger)
	for _, source := range registry.AllSources() {
		logger.Info().
			Str("source", string(source.SourceType())).
			Bool("enabled", source.IsEnabled()).
			Msg("paper source registered")
	}

	httpCfg := httpserver.Config{
		Address:             cfg.Server.HTTPAddress(),
		ReadTimeout:         cfg.Server.ReadTimeout,
		WriteTimeout:        cfg.Server.WriteTimeout,
		IdleTimeout:         2 * time.Minute,
		ShutdownTimeout:     cfg.Server.ShutdownTimeout,
		DefaultSearchSource: domain.SourceType(cfg.API.DefaultSearchSource),
		DefaultLookupSource: domain.SourceType(cfg.API.DefaultLookupSource),
	}
	httpSrv := httpserver.NewServer(httpCfg, registry, recorder, logger)

	// gRPC carries the health service only.
	var (
		grpcServer   *grpc.Server
		grpcListener net.Listener
		reporter     *server.HealthReporter
	)
	if cfg.Server.GRPCEnabled {
		reporter = server.NewHealthReporter(registry, logger)
		grpcServer = server.NewGRPCServer(reporter)
		grpcListener, err = net.Listen("tcp", cfg.Server.GRPCAddress())
		if err != nil {
			return fmt.Errorf("listen on gRPC port: %w", err)
		}
	}

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 3)

	if grpcServer != nil {
		go func() {
			logger.Info().
				Str("address", grpcListener.Addr().String()).
				Msg("gRPC server starting")
			if err := grpcServer.Serve(grpcListener); err != nil {
				errCh <- fmt.Errorf("gRPC server error: %w", err)
			}
		}()
	}

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if grpcServer != nil {
		readyLog = readyLog.Str("grpc_address", grpcListener.Addr().String())
	}
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("scholar-tools-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down scholar-tools-service")

	if reporter != nil {
		reporter.Shutdown()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	if grpcServer != nil {
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
			logger.Info().Msg("gRPC server stopped gracefully")
		case <-shutdownCtx.Done():
			logger.Warn().Msg("gRPC server forced shutdown due to timeout")
			grpcServer.Stop()
		}
	}

	logger.Info().Msg("scholar-tools-service shutdown complete")
	return nil
}
