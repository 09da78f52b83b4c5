package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/knowledged/internal/errs"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Environment = "prod" },
			wantErr: "environment must be one of",
		},
		{
			name: "mock mode in production",
			mutate: func(c *Config) {
				c.Environment = EnvProduction
				c.Embedding.Mock = true
			},
			wantErr: "mock embedding mode is not allowed in production",
		},
		{
			name: "missing base url without mock",
			mutate: func(c *Config) {
				c.Embedding.BaseURL = ""
			},
			wantErr: "embedding base_url is required",
		},
		{
			name:   "mock mode allows empty base url",
			mutate: func(c *Config) { c.Embedding.Mock = true; c.Embedding.BaseURL = "" },
		},
		{
			name:    "zero dimension",
			mutate:  func(c *Config) { c.Embedding.Dimension = 0 },
			wantErr: "dimension must be positive",
		},
		{
			name:    "zero max attempts",
			mutate:  func(c *Config) { c.Embedding.MaxAttempts = 0 },
			wantErr: "max_attempts must be at least 1",
		},
		{
			name:    "missing graph uri",
			mutate:  func(c *Config) { c.Graph.URI = "" },
			wantErr: "graph uri is required",
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Batch.MaxConcurrency = 0 },
			wantErr: "max_concurrency must be at least 1",
		},
		{
			name: "negative per-tool timeout",
			mutate: func(c *Config) {
				c.Tools.Timeouts = map[string]Duration{"embed_text": Duration(-time.Second)}
			},
			wantErr: `timeout for "embed_text" must be positive`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, errs.CodeConfig, errs.CodeOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
environment: staging
embedding:
  base_url: http://file-host:8080
  dimension: 768
graph:
  uri: bolt://file-host:7687
tools:
  timeouts:
    embed_text: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("EMBEDDING_BASE_URL", "http://env-host:8080")
	t.Setenv("BATCH_MAX_CONCURRENCY", "20")
	t.Setenv("GRAPH_READ_ONLY", "true")
	t.Setenv("SERVER_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "staging", cfg.Environment)
	assert.Equal(t, "http://env-host:8080", cfg.Embedding.BaseURL, "env beats file")
	assert.Equal(t, 768, cfg.Embedding.Dimension, "file beats default")
	assert.Equal(t, 20, cfg.Batch.MaxConcurrency)
	assert.True(t, cfg.Graph.ReadOnly)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, 5*time.Second, cfg.Tools.TimeoutFor("embed_text"))
	assert.Equal(t, 30*time.Second, cfg.Tools.TimeoutFor("query_graph"), "falls back to default")
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("EMBEDDING_MOCK", "true")

	_, err := Load("")
	require.Error(t, err)
	assert.Equal(t, errs.CodeConfig, errs.CodeOf(err))
}

func TestEnvToKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ENVIRONMENT", "environment"},
		{"SERVER_SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},
		{"EMBEDDING_BASE_URL", "embedding.base_url"},
		{"TOOLS_DEFAULT_TIMEOUT", "tools.default_timeout"},
		{"TOOLS_TIMEOUTS_EMBED_TEXT", "tools.timeouts.embed_text"},
		{"GRAPH_READ_ONLY", "graph.read_only"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, envToKey(tt.in), tt.in)
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("-5s")), "negative durations are rejected at parse time")
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "super-secret", s.Value())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "super-secret")
}
