// Package embeddings wraps the external embedding provider behind a
// uniform interface with batching, bounded retries and timeouts.
package embeddings

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowledged/internal/config"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrDimensionMismatch indicates the provider returned a vector whose
	// length differs from the configured model dimension. This is a
	// provider contract violation, never retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Provider is the interface for embedding providers.
type Provider interface {
	// Embed generates one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Model returns the model name vectors are generated with.
	Model() string
	// Dimension returns the fixed vector dimension for the model.
	Dimension() int
	// Ping verifies the provider is reachable.
	Ping(ctx context.Context) error
	// Close releases resources held by the provider.
	Close() error
}

// NewProvider creates a provider from configuration. Mock mode selects
// the deterministic network-free provider; config validation guarantees
// it is unreachable in production. maxInFlight caps concurrent provider
// calls across every caller of the returned provider; zero or negative
// means unbounded.
func NewProvider(cfg config.EmbeddingConfig, maxInFlight int, reg prometheus.Registerer, logger *zap.Logger) (Provider, error) {
	if cfg.Mock {
		return NewMockProvider(cfg.Model, cfg.Dimension), nil
	}
	return NewService(cfg, maxInFlight, NewMetrics(reg), logger)
}
