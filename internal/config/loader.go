package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/knowledged/internal/errs"
)

// sections lists the env var prefixes this loader owns. Anything else in
// the environment is ignored.
var sections = map[string]bool{
	"ENVIRONMENT": true,
	"SERVER":      true,
	"EMBEDDING":   true,
	"GRAPH":       true,
	"BATCH":       true,
	"TOOLS":       true,
	"LOGGING":     true,
	"TELEMETRY":   true,
}

// Load builds the configuration from an optional YAML file overridden by
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (EMBEDDING_BASE_URL, GRAPH_READ_ONLY, ...)
//  2. YAML config file, if configPath is non-empty and the file exists
//  3. Built-in defaults
//
// Environment variables map to config keys by section:
//
//	SERVER_SHUTDOWN_TIMEOUT  -> server.shutdown_timeout
//	EMBEDDING_BASE_URL       -> embedding.base_url
//	TOOLS_TIMEOUTS_EMBED_TEXT -> tools.timeouts.embed_text
//
// The returned config is validated; an invalid configuration is a fatal
// CONFIG_ERROR and the caller must refuse to start.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errs.Config("reading config file %s: %v", configPath, err)
			}
		} else if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, errs.Config("parsing config file %s: %v", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envToKey), nil); err != nil {
		return nil, errs.Config("loading environment: %v", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errs.Config("decoding configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envToKey maps an environment variable name to its config key, or ""
// for variables this loader does not own.
func envToKey(name string) string {
	section, rest, found := strings.Cut(name, "_")
	if !sections[section] {
		return ""
	}
	if section == "ENVIRONMENT" {
		if found {
			return "" // ENVIRONMENT has no subkeys
		}
		return "environment"
	}
	if !found || rest == "" {
		return ""
	}
	// Per-tool timeouts nest one level deeper.
	if section == "TOOLS" {
		if tool, ok := strings.CutPrefix(rest, "TIMEOUTS_"); ok && tool != "" {
			return fmt.Sprintf("tools.timeouts.%s", strings.ToLower(tool))
		}
	}
	return strings.ToLower(section) + "." + strings.ToLower(rest)
}
