package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/lexiqai/narration-gateway/internal/api"
	"github.com/lexiqai/narration-gateway/internal/config"
	"github.com/lexiqai/narration-gateway/internal/narrator"
	"github.com/lexiqai/narration-gateway/internal/observability"
)

const readinessInterval = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("grpc_port", cfg.GRPCPort).
		Str("backend", cfg.TTSBackend).
		Str("output_dir", cfg.OutputDir).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Narration Gateway starting")

	components, err := narrator.FromConfig(context.Background(), cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize narration service")
	}
	defer components.Close()

	checks := components.DependencyChecks()

	// Create HTTP server
	mux := http.NewServeMux()
	api.NewHandler(components.Service, components.History).Register(mux)
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks...))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Batches run synchronously inside the request, so the write timeout
	// has to cover the slowest synthesis.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// gRPC health service mirrors /ready
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.GRPCPort))
	if err != nil {
		logger.Fatal().Err(err).Str("grpc_port", cfg.GRPCPort).Msg("Failed to listen for gRPC")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go watchReadiness(ctx, healthServer, checks, logger)

	go func() {
		logger.Info().Str("grpc_port", cfg.GRPCPort).Msg("gRPC health service listening")
		if err := grpcServer.Serve(grpcListener); err != nil {
			logger.Error().Err(err).Msg("gRPC server stopped")
		}
	}()

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/v1/narrations", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")
	stop()
	healthServer.Shutdown()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	grpcServer.GracefulStop()

	logger.Info().Msg("Server exited gracefully")
}

// watchReadiness runs the readiness checks periodically and publishes the
// result as the gRPC serving status
func watchReadiness(ctx context.Context, hs *health.Server, checks []observability.DependencyCheck, logger zerolog.Logger) {
	ticker := time.NewTicker(readinessInterval)
	defer ticker.Stop()

	last := healthpb.HealthCheckResponse_UNKNOWN
	for {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		ready, deps := observability.RunChecks(checkCtx, checks...)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if !ready {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		if status != last {
			logger.Info().Str("status", status.String()).Interface("dependencies", deps).Msg("Readiness changed")
			last = status
		}
		hs.SetServingStatus("", status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
