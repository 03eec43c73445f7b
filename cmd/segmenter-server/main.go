// Command segmenter-server serves the Solve RPC over gRPC and exposes
// Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/trajectory-segmenter/internal/config"
	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/internal/observability"
	"github.com/signalsfoundry/trajectory-segmenter/internal/rpc"
	"github.com/signalsfoundry/trajectory-segmenter/solver"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "", "config file (default .segmenter.yaml)")
	grpcAddr := flag.String("grpc-addr", "", "TCP address the gRPC server listens on (overrides server.listen_address)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides server.metrics_address)")
	flag.Parse()

	boot := logging.NewFromEnv()
	ctx := context.Background()

	v, err := config.New(*configFile)
	if err != nil {
		boot.Error(ctx, "failed to read config", logging.Err(err))
		os.Exit(1)
	}
	cfg, err := config.Load(v)
	if err != nil {
		boot.Error(ctx, "invalid config", logging.Err(err))
		os.Exit(1)
	}
	if *grpcAddr != "" {
		cfg.Server.ListenAddress = *grpcAddr
	}
	if *metricsAddr != "" {
		cfg.Server.MetricsAddress = *metricsAddr
	}
	log := cfg.Logger(os.Stderr)

	lis, err := net.Listen("tcp", cfg.Server.ListenAddress)
	if err != nil {
		log.Error(ctx, "failed to listen for gRPC", logging.String("addr", cfg.Server.ListenAddress), logging.Err(err))
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(runCtx, cfg, log, lis); err != nil {
		log.Error(ctx, "server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves on lis until ctx is cancelled, then drains in-flight calls.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	tc := cfg.TracingConfig()
	tc.Version = version
	shutdownTracing, err := observability.InitTracing(ctx, tc, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	rpcMetrics, err := observability.NewRPCCollector(reg)
	if err != nil {
		return fmt.Errorf("rpc metrics: %w", err)
	}
	solveMetrics, err := observability.NewSolverCollector(reg)
	if err != nil {
		return fmt.Errorf("solver metrics: %w", err)
	}
	metricsSrv := serveMetrics(cfg.Server.MetricsAddress, rpcMetrics.Handler(), log)

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			rpc.SolveIDUnaryServerInterceptor(log),
			rpcMetrics.UnaryServerInterceptor(),
		),
	)
	rpc.RegisterSegmenterServer(server, rpc.NewService(cfg.SolverConfig(), log, solver.WithMetrics(solveMetrics)))

	serveErr := make(chan error, 1)
	log.Info(ctx, "starting segmenter gRPC server", logging.String("addr", lis.Addr().String()))
	go func() {
		serveErr <- server.Serve(lis)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutting down segmenter server")
		server.GracefulStop()
	case err := <-serveErr:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			runErr = fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return runErr
}

func serveMetrics(addr string, handler http.Handler, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
