// Package gateway exposes the knowledge service as MCP tools over the
// stdio and streamable HTTP transports. Every tool call runs under a
// per-tool deadline and reports a typed error frame on failure.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/config"
	"github.com/fyrsmithlabs/knowledged/internal/errs"
	"github.com/fyrsmithlabs/knowledged/internal/knowledge"
)

const instrumentationName = "github.com/fyrsmithlabs/knowledged/internal/gateway"

// Config configures the gateway server.
type Config struct {
	// Name is the server implementation name (default: "knowledged").
	Name string

	// Version is the server version (default: "dev").
	Version string

	// Tools carries per-tool deadlines.
	Tools config.ToolsConfig

	// Logger for structured logging.
	Logger *zap.Logger

	// Registerer receives gateway metrics. Nil disables them.
	Registerer prometheus.Registerer
}

// Server is the MCP front of the knowledge service.
type Server struct {
	mcp      *mcp.Server
	svc      *knowledge.Service
	health   *knowledge.Health
	tools    config.ToolsConfig
	registry *ToolRegistry
	metrics  *Metrics
	logger   *zap.Logger
}

// NewServer creates the gateway and registers all tools.
func NewServer(cfg *Config, svc *knowledge.Service, health *knowledge.Health) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("knowledge service is required")
	}
	if health == nil {
		return nil, fmt.Errorf("health aggregator is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Name == "" {
		cfg.Name = "knowledged"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		svc:      svc,
		health:   health,
		tools:    cfg.Tools,
		registry: NewToolRegistry(),
		metrics:  NewMetrics(cfg.Registerer),
		logger:   cfg.Logger.Named("gateway"),
	}

	s.registerEmbeddingTools()
	s.registerDocumentTools()
	s.registerSearchTools()
	s.registerGraphTools()
	s.registerWorkflowTools()
	s.registerSystemTools()
	return s, nil
}

// Registry returns tool metadata for discovery.
func (s *Server) Registry() *ToolRegistry {
	return s.registry
}

// Run serves MCP on the stdio transport until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// HTTPHandler serves MCP over the streamable HTTP transport.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
}

// handler wraps a tool body with the per-tool deadline, metrics, a
// trace span, and error frame rendering. The deadline bounds the whole
// call including downstream retries.
func handler[In, Out any](s *Server, name string, fn func(ctx context.Context, args In) (Out, string, error)) func(context.Context, *mcp.CallToolRequest, In) (*mcp.CallToolResult, Out, error) {
	return func(ctx context.Context, _ *mcp.CallToolRequest, args In) (*mcp.CallToolResult, Out, error) {
		var zero Out
		start := time.Now()
		s.metrics.incActive(name)
		defer s.metrics.decActive(name)

		timeout := s.tools.TimeoutFor(name)
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		ctx, span := otel.Tracer(instrumentationName).Start(ctx, "tool/"+name)
		span.SetAttributes(attribute.String("tool.name", name))
		defer span.End()

		out, summary, err := fn(ctx, args)
		elapsed := time.Since(start)
		if err != nil {
			// The tool deadline decides the classification: drivers may
			// surface an expired context as their own error type, so the
			// returned chain cannot be trusted to carry DeadlineExceeded.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				err = errs.Timeout(name, timeout)
			}
			s.metrics.record(name, elapsed, err)
			span.RecordError(err)
			s.logger.Warn("tool call failed",
				zap.String("tool", name),
				zap.String("code", string(errs.CodeOf(err))),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
			return errorResult(err), zero, nil
		}

		s.metrics.record(name, elapsed, nil)
		s.logger.Debug("tool call completed",
			zap.String("tool", name), zap.Duration("elapsed", elapsed))
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: summary}},
		}, out, nil
	}
}

// register wires one tool into the MCP server and the registry.
func register[In, Out any](s *Server, meta *ToolMetadata, fn func(ctx context.Context, args In) (Out, string, error)) {
	s.registry.Register(meta)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        meta.Name,
		Description: meta.Description,
	}, handler(s, meta.Name, fn))
}
