package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// MockProvider is a deterministic, network-free embedding provider for
// development and testing. The same (text, model) pair always yields a
// bit-identical vector.
type MockProvider struct {
	model     string
	dimension int
	// Latency is injected per call when non-zero. Test hook for load
	// tests that need realistic provider pacing.
	Latency time.Duration
}

// NewMockProvider creates a mock provider for the given model and
// dimension. Config validation keeps mock mode out of production.
func NewMockProvider(model string, dimension int) *MockProvider {
	return &MockProvider{model: model, dimension: dimension}
}

// Model returns the simulated model name.
func (m *MockProvider) Model() string { return m.model }

// Dimension returns the configured vector dimension.
func (m *MockProvider) Dimension() int { return m.dimension }

// Ping always succeeds.
func (m *MockProvider) Ping(ctx context.Context) error { return nil }

// Close is a no-op.
func (m *MockProvider) Close() error { return nil }

// Embed derives one unit-normalized vector per text. Pure function of
// (text, model, dimension).
func (m *MockProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}
	if m.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Latency):
		}
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = m.pseudoEmbedding(text)
	}
	return vectors, nil
}

// pseudoEmbedding expands a SHA-256 digest of model and text into the
// configured dimension, then unit-normalizes.
func (m *MockProvider) pseudoEmbedding(text string) []float32 {
	seed := sha256.Sum256([]byte(m.model + "\x00" + text))

	vector := make([]float32, m.dimension)
	var norm float64
	block := seed
	for i := 0; i < m.dimension; i++ {
		word := i % 8
		if i > 0 && word == 0 {
			block = sha256.Sum256(block[:])
		}
		bits := binary.BigEndian.Uint32(block[word*4 : word*4+4])
		// Map to [-1, 1).
		v := float64(int32(bits)) / float64(math.MaxInt32)
		vector[i] = float32(v)
		norm += v * v
	}

	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector
}
