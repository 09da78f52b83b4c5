package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/knowledged/internal/config"
	"github.com/fyrsmithlabs/knowledged/internal/errs"
)

// Service is the HTTP embedding provider. It speaks the TEI-style embed
// endpoint: POST {base_url}/embed with a list of inputs, a JSON array of
// vectors back.
type Service struct {
	cfg     config.EmbeddingConfig
	client  *http.Client
	limiter *rate.Limiter
	gate    chan struct{}
	metrics *Metrics
	logger  *zap.Logger
}

// NewService creates the HTTP provider from configuration. maxInFlight
// caps concurrent calls to the provider process-wide; zero or negative
// means unbounded.
func NewService(cfg config.EmbeddingConfig, maxInFlight int, metrics *Metrics, logger *zap.Logger) (*Service, error) {
	if cfg.BaseURL == "" {
		return nil, errs.Config("embedding base_url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	var gate chan struct{}
	if maxInFlight > 0 {
		gate = make(chan struct{}, maxInFlight)
	}

	return &Service{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout.Duration()},
		limiter: limiter,
		gate:    gate,
		metrics: metrics,
		logger:  logger.Named("embeddings"),
	}, nil
}

// Model returns the configured model name.
func (s *Service) Model() string { return s.cfg.Model }

// Dimension returns the declared vector dimension.
func (s *Service) Dimension() int { return s.cfg.Dimension }

// Close is a no-op for the HTTP provider.
func (s *Service) Close() error { return nil }

// Ping checks provider reachability via its health endpoint.
func (s *Service) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return errs.Dependency("embedding", nil, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errs.Dependency("embedding", nil, fmt.Errorf("health status %d", resp.StatusCode))
	}
	return nil
}

// Embed generates one vector per input text, in input order.
//
// If the item count exceeds the configured batch threshold a single
// native batch call is issued; otherwise items go out as individual
// calls. Either way every response vector is checked against the
// declared model dimension.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	if len(texts) > s.cfg.BatchThreshold {
		return s.embedWithRetry(ctx, texts)
	}

	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vs, err := s.embedWithRetry(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vs[0])
	}
	return vectors, nil
}

// embedWithRetry issues one provider call, retrying transient failures
// with exponential backoff up to the configured attempt bound.
func (s *Service) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	for att := firstAttempt(s.cfg.MaxAttempts, s.cfg.BackoffBase.Duration()); ; att = att.next() {
		vectors, err := s.embedOnce(ctx, texts)
		if err == nil {
			return vectors, nil
		}

		if !transient(err) {
			s.metrics.recordFailure("permanent")
			return nil, errs.Dependency("embedding", nil, err)
		}
		if att.last() {
			s.metrics.recordFailure("exhausted")
			return nil, errs.Dependency("embedding", retryAfterHint(err), err)
		}

		delay := att.backoff()
		if hint := retryAfterHint(err); hint != nil && *hint > delay {
			delay = *hint
		}
		s.metrics.recordRetry()
		s.logger.Debug("retrying embedding call",
			zap.Int("attempt", att.n),
			zap.Int("max_attempts", att.max),
			zap.Duration("backoff", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, errs.Dependency("embedding", nil, context.Cause(ctx))
		case <-time.After(delay):
		}
	}
}

// teiRequest is the request body for the embed endpoint.
type teiRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate"`
}

// embedOnce performs a single HTTP call and validates the response shape.
func (s *Service) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	if s.gate != nil {
		select {
		case s.gate <- struct{}{}:
			defer func() { <-s.gate }()
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	}

	start := time.Now()
	s.metrics.incInFlight()
	defer s.metrics.decInFlight()

	body, err := json.Marshal(teiRequest{Inputs: texts, Truncate: true})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey.IsSet() {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey.Value())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.metrics.recordCall("error", time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.metrics.recordCall("error", time.Since(start))
		return nil, &httpError{
			status:     resp.StatusCode,
			body:       string(respBody),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		s.metrics.recordCall("error", time.Since(start))
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(vectors) != len(texts) {
		s.metrics.recordCall("error", time.Since(start))
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs",
			ErrDimensionMismatch, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != s.cfg.Dimension {
			s.metrics.recordCall("error", time.Since(start))
			return nil, fmt.Errorf("%w: vector %d has length %d, model %s declares %d",
				ErrDimensionMismatch, i, len(v), s.cfg.Model, s.cfg.Dimension)
		}
	}

	s.metrics.recordCall("success", time.Since(start))
	return vectors, nil
}
