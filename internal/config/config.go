// Package config provides configuration loading for knowledged.
//
// Configuration is loaded from an optional YAML file overridden by
// environment variables. Validation is strict: the process refuses to
// start with an invalid configuration rather than running half-configured.
package config

import (
	"time"

	"github.com/fyrsmithlabs/knowledged/internal/errs"
)

// Environment names accepted by Config.Environment.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config holds the complete knowledged configuration.
type Config struct {
	Environment string          `koanf:"environment"`
	Server      ServerConfig    `koanf:"server"`
	Embedding   EmbeddingConfig `koanf:"embedding"`
	Graph       GraphConfig     `koanf:"graph"`
	Batch       BatchConfig     `koanf:"batch"`
	Tools       ToolsConfig     `koanf:"tools"`
	Logging     LoggingConfig   `koanf:"logging"`
	Telemetry   TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	// BaseURL is the embedding provider endpoint.
	BaseURL string `koanf:"base_url"`
	// APIKey is the provider credential (optional for self-hosted TEI).
	APIKey Secret `koanf:"api_key"`
	// Model is the embedding model name.
	Model string `koanf:"model"`
	// Dimension is the declared vector dimension for Model. A response
	// with a different length is a provider contract violation.
	Dimension int `koanf:"dimension"`
	// BatchThreshold is the item count above which a single native batch
	// call is issued instead of per-item calls.
	BatchThreshold int `koanf:"batch_threshold"`
	// MaxAttempts bounds retries for transient failures (total attempts).
	MaxAttempts int `koanf:"max_attempts"`
	// BackoffBase is the initial retry backoff delay.
	BackoffBase Duration `koanf:"backoff_base"`
	// RequestTimeout bounds a single provider HTTP call.
	RequestTimeout Duration `koanf:"request_timeout"`
	// RateLimit caps provider calls per second. Zero disables the limiter.
	RateLimit float64 `koanf:"rate_limit"`
	// Mock selects the deterministic network-free provider. Rejected in
	// production.
	Mock bool `koanf:"mock"`
}

// GraphConfig holds graph database configuration.
type GraphConfig struct {
	URI      string `koanf:"uri"`
	Username string `koanf:"username"`
	Password Secret `koanf:"password"`
	Database string `koanf:"database"`
	// ReadOnly rejects mutating queries before execution.
	ReadOnly bool `koanf:"read_only"`
}

// BatchConfig holds batch orchestrator configuration.
type BatchConfig struct {
	// MaxConcurrency bounds simultaneous sub-tasks per batch. Global per
	// process, not per tenant.
	MaxConcurrency int `koanf:"max_concurrency"`
}

// ToolsConfig holds per-tool call timeouts.
type ToolsConfig struct {
	// DefaultTimeout applies to tools without an explicit entry.
	DefaultTimeout Duration `koanf:"default_timeout"`
	// Timeouts maps tool name to its call timeout.
	Timeouts map[string]Duration `koanf:"timeouts"`
}

// TimeoutFor returns the configured timeout for a tool.
func (t ToolsConfig) TimeoutFor(tool string) time.Duration {
	if d, ok := t.Timeouts[tool]; ok && d > 0 {
		return d.Duration()
	}
	return t.DefaultTimeout.Duration()
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds trace export configuration.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// Default returns the built-in defaults, suitable for development.
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9090,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Embedding: EmbeddingConfig{
			BaseURL:        "http://localhost:8080",
			Model:          "BAAI/bge-small-en-v1.5",
			Dimension:      384,
			BatchThreshold: 4,
			MaxAttempts:    3,
			BackoffBase:    Duration(200 * time.Millisecond),
			RequestTimeout: Duration(30 * time.Second),
			RateLimit:      0,
		},
		Graph: GraphConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
		},
		Batch: BatchConfig{
			MaxConcurrency: 8,
		},
		Tools: ToolsConfig{
			DefaultTimeout: Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "knowledged",
			Insecure:    true,
			SampleRate:  1.0,
		},
	}
}

// Validate checks the configuration. Any error is fatal at startup.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return errs.Config("environment must be one of development, staging, production; got %q", c.Environment)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errs.Config("server port %d out of range", c.Server.Port)
	}

	if c.Embedding.Mock && c.Environment == EnvProduction {
		return errs.Config("mock embedding mode is not allowed in production")
	}
	if !c.Embedding.Mock && c.Embedding.BaseURL == "" {
		return errs.Config("embedding base_url is required")
	}
	if c.Embedding.Model == "" {
		return errs.Config("embedding model is required")
	}
	if c.Embedding.Dimension <= 0 {
		return errs.Config("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Embedding.BatchThreshold < 1 {
		return errs.Config("embedding batch_threshold must be at least 1, got %d", c.Embedding.BatchThreshold)
	}
	if c.Embedding.MaxAttempts < 1 {
		return errs.Config("embedding max_attempts must be at least 1, got %d", c.Embedding.MaxAttempts)
	}
	if c.Embedding.RateLimit < 0 {
		return errs.Config("embedding rate_limit cannot be negative")
	}

	if c.Graph.URI == "" {
		return errs.Config("graph uri is required")
	}

	if c.Batch.MaxConcurrency < 1 {
		return errs.Config("batch max_concurrency must be at least 1, got %d", c.Batch.MaxConcurrency)
	}

	if c.Tools.DefaultTimeout <= 0 {
		return errs.Config("tools default_timeout must be positive")
	}
	for tool, d := range c.Tools.Timeouts {
		if d <= 0 {
			return errs.Config("tools timeout for %q must be positive", tool)
		}
	}

	return nil
}
