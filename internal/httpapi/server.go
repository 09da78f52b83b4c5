// Package httpapi provides the operational HTTP surface: health and
// readiness probes, Prometheus metrics, tool discovery, and the MCP
// streamable HTTP transport.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/config"
	"github.com/fyrsmithlabs/knowledged/internal/gateway"
	"github.com/fyrsmithlabs/knowledged/internal/knowledge"
)

// Server serves the operational endpoints next to the MCP transport.
type Server struct {
	echo   *echo.Echo
	health *knowledge.Health
	logger *zap.Logger
	config config.ServerConfig
}

// NewServer creates the HTTP server. The gatherer backs /metrics; the
// gateway contributes tool discovery and the MCP HTTP transport.
func NewServer(cfg config.ServerConfig, health *knowledge.Health, gw *gateway.Server, gatherer prometheus.Gatherer, logger *zap.Logger) (*Server, error) {
	if health == nil {
		return nil, fmt.Errorf("health aggregator is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	})

	s := &Server{
		echo:   e,
		health: health,
		logger: logger,
		config: cfg,
	}

	e.GET("/health", s.handleHealth)
	e.GET("/ready", s.handleReady)

	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	if gw != nil {
		e.GET("/api/v1/tools", func(c echo.Context) error {
			return c.JSON(http.StatusOK, gw.Registry().List())
		})
		e.Any("/mcp", echo.WrapHandler(gw.HTTPHandler()))
	}

	return s, nil
}

// handleHealth reports the latest dependency aggregate. The body always
// includes per-component detail; the status code follows the aggregate.
func (s *Server) handleHealth(c echo.Context) error {
	status := s.health.Snapshot()
	code := http.StatusOK
	if status.Status == knowledge.StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// handleReady gates load balancer traffic.
func (s *Server) handleReady(c echo.Context) error {
	if !s.health.Ready() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
