// Knowledged is a multi-tenant knowledge gateway. It fronts an
// embedding provider and a graph database behind MCP tools, with every
// operation scoped to a project.
//
// Configuration comes from an optional YAML file and environment
// variables (environment wins). See internal/config for the full list.
//
// Usage:
//
//	# Start the daemon (HTTP transport on SERVER_PORT, default 9090)
//	knowledged
//
//	# Serve MCP on stdio for direct agent integration
//	knowledged -stdio
//
//	# Configure via environment
//	EMBEDDING_BASE_URL=http://localhost:8080 GRAPH_URI=bolt://localhost:7687 knowledged
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/batch"
	"github.com/fyrsmithlabs/knowledged/internal/config"
	"github.com/fyrsmithlabs/knowledged/internal/embeddings"
	"github.com/fyrsmithlabs/knowledged/internal/gateway"
	"github.com/fyrsmithlabs/knowledged/internal/graph"
	"github.com/fyrsmithlabs/knowledged/internal/httpapi"
	"github.com/fyrsmithlabs/knowledged/internal/knowledge"
	"github.com/fyrsmithlabs/knowledged/internal/logging"
	"github.com/fyrsmithlabs/knowledged/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const healthInterval = 15 * time.Second

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	stdioMode := flag.Bool("stdio", false, "serve MCP on stdio instead of HTTP")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  knowledged            Start the gateway daemon\n")
			fmt.Fprintf(os.Stderr, "  knowledged -stdio     Serve MCP on stdio\n")
			fmt.Fprintf(os.Stderr, "  knowledged version    Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath, *stdioMode); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("knowledged by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run initializes everything and blocks until ctx is canceled:
//  1. Loads and validates configuration
//  2. Initializes logger and telemetry
//  3. Connects to the embedding provider and graph database
//  4. Wires the batch orchestrator, knowledge service, and health polling
//  5. Serves MCP over HTTP (plus probes and metrics) or stdio
func run(ctx context.Context, configPath string, stdioMode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	logger.Info("Starting knowledged",
		zap.String("version", version),
		zap.String("environment", string(cfg.Environment)),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("stdio", stdioMode),
		zap.Bool("mock_embeddings", cfg.Embedding.Mock),
		zap.Bool("graph_read_only", cfg.Graph.ReadOnly))

	tel, err := telemetry.New(ctx, cfg.Telemetry, version)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	provider, err := embeddings.NewProvider(cfg.Embedding, cfg.Batch.MaxConcurrency, registry, logger)
	if err != nil {
		return fmt.Errorf("failed to create embedding provider: %w", err)
	}
	defer func() {
		_ = provider.Close()
	}()

	logger.Info("Embedding provider initialized",
		zap.String("model", provider.Model()),
		zap.Int("dimension", provider.Dimension()))

	adapter, err := graph.NewAdapter(cfg.Graph, registry, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to graph database: %w", err)
	}
	defer func() {
		_ = adapter.Close(context.Background())
	}()

	if err := adapter.EnsureIndexes(ctx, provider.Dimension()); err != nil {
		return fmt.Errorf("failed to ensure graph indexes: %w", err)
	}

	logger.Info("Graph database initialized",
		zap.String("uri", cfg.Graph.URI),
		zap.String("database", cfg.Graph.Database))

	orchestrator := batch.New(cfg.Batch.MaxConcurrency, batch.NewMetrics(registry), logger)
	svc := knowledge.NewService(provider, adapter, orchestrator, logger)

	health := knowledge.NewHealth(healthInterval, 5*time.Second, logger,
		knowledge.Checker{Name: "embeddings", Check: provider.Ping},
		knowledge.Checker{Name: "graph", Check: adapter.Ping},
	)
	go health.Run(ctx)

	gw, err := gateway.NewServer(&gateway.Config{
		Name:       "knowledged",
		Version:    version,
		Tools:      cfg.Tools,
		Logger:     logger,
		Registerer: registry,
	}, svc, health)
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	if stdioMode {
		return runStdio(ctx, gw, logger)
	}

	srv, err := httpapi.NewServer(cfg.Server, health, gw, registry, logger)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("Server configured",
		zap.String("health_endpoint", fmt.Sprintf("http://%s:%d/health", cfg.Server.Host, cfg.Server.Port)),
		zap.String("mcp_endpoint", "/mcp"),
		zap.String("metrics_endpoint", "/metrics"))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
