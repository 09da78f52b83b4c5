package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/gateway"
)

// runStdio serves MCP over stdin/stdout for direct agent integration.
// Logs go to stderr; stdout belongs to the protocol.
func runStdio(ctx context.Context, gw *gateway.Server, logger *zap.Logger) error {
	logger.Info("Starting MCP stdio transport")
	fmt.Fprintln(os.Stderr, "knowledged stdio mode started")

	if err := gw.Run(ctx); err != nil {
		return fmt.Errorf("stdio server error: %w", err)
	}
	logger.Info("stdio MCP server shutdown complete")
	return nil
}
