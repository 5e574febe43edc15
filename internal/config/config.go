// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-wssec.
//
// go-wssec is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the YAML configuration of a WS-Security
// interceptor: its static options, the endpoint it serves, where resources
// are read from, and the logging and metrics settings.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete interceptor configuration
type Config struct {
	Interceptor InterceptorConfig `yaml:"interceptor"`
	Endpoint    EndpointConfig    `yaml:"endpoint"`
	Resources   ResourcesConfig   `yaml:"resources"`
	Trust       TrustConfig       `yaml:"trust"`
	Vault       *VaultConfig      `yaml:"vault,omitempty"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// InterceptorConfig holds the identity and static options of the interceptor
type InterceptorConfig struct {
	ID      string         `yaml:"id"`
	Phase   string         `yaml:"phase"`
	Before  []string       `yaml:"before,omitempty"`
	After   []string       `yaml:"after,omitempty"`
	Options map[string]any `yaml:"options,omitempty"`
}

// EndpointConfig holds properties shared by every exchange on the endpoint
type EndpointConfig struct {
	Name       string         `yaml:"name"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// ResourcesConfig controls where properties files and keystores are read from
type ResourcesConfig struct {
	Dir string `yaml:"dir"` // empty means the working directory
}

// TrustConfig tunes the crypto resolver
type TrustConfig struct {
	MissLogInterval time.Duration `yaml:"miss_log_interval"`
	MissLogBurst    int           `yaml:"miss_log_burst"`
}

// VaultConfig configures the "vault" callback handler
type VaultConfig struct {
	Address      string     `yaml:"address"`
	Token        string     `yaml:"token"`
	Namespace    string     `yaml:"namespace"`
	SecretPath   string     `yaml:"secret_path"`
	DefaultField string     `yaml:"default_field"`
	MaxRetries   int        `yaml:"max_retries"` // negative keeps the client default
	TLS          *TLSConfig `yaml:"tls,omitempty"`
}

// UnmarshalYAML decodes a vault section. An omitted max_retries keeps the
// client default instead of disabling retries.
func (v *VaultConfig) UnmarshalYAML(node *yaml.Node) error {
	type plain VaultConfig
	raw := plain{MaxRetries: -1}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*v = VaultConfig(raw)
	return nil
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls metrics collection
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used for keys missing from the file
func Default() *Config {
	return &Config{
		Interceptor: InterceptorConfig{
			ID:    "wss.Interceptor",
			Phase: "pre-protocol",
		},
		Trust: TrustConfig{
			MissLogInterval: time.Second,
			MissLogBurst:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies environment variable overrides
// and validates the result
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if id := os.Getenv("WSSEC_INTERCEPTOR_ID"); id != "" {
		cfg.Interceptor.ID = id
	}
	if dir := os.Getenv("WSSEC_RESOURCES_DIR"); dir != "" {
		cfg.Resources.Dir = dir
	}

	// Logging
	if level := os.Getenv("WSSEC_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("WSSEC_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Metrics
	if enabled := os.Getenv("WSSEC_METRICS_ENABLED"); enabled != "" {
		v, err := strconv.ParseBool(enabled)
		if err != nil {
			log.Printf("Warning: invalid WSSEC_METRICS_ENABLED value %q, using %t: %v",
				enabled, cfg.Metrics.Enabled, err)
		} else {
			cfg.Metrics.Enabled = v
		}
	}

	// Vault settings
	if cfg.Vault != nil {
		if addr := os.Getenv("VAULT_ADDR"); addr != "" {
			cfg.Vault.Address = addr
		}
		if token := os.Getenv("VAULT_TOKEN"); token != "" {
			cfg.Vault.Token = token
		}
		if namespace := os.Getenv("VAULT_NAMESPACE"); namespace != "" {
			cfg.Vault.Namespace = namespace
		}
		if path := os.Getenv("WSSEC_VAULT_SECRET_PATH"); path != "" {
			cfg.Vault.SecretPath = path
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Interceptor.ID) == "" {
		return fmt.Errorf("interceptor id must be specified")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "warning": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Trust.MissLogInterval < 0 {
		return fmt.Errorf("trust miss_log_interval must not be negative")
	}
	if c.Trust.MissLogBurst < 1 {
		return fmt.Errorf("trust miss_log_burst must be at least 1")
	}

	if c.Vault != nil {
		if c.Vault.Address == "" {
			return fmt.Errorf("vault address is required when vault is configured")
		}
		if c.Vault.SecretPath == "" {
			return fmt.Errorf("vault secret_path is required when vault is configured")
		}
		if c.Vault.TLS != nil {
			if err := c.Vault.TLS.Validate(); err != nil {
				return fmt.Errorf("vault %w", err)
			}
		}
	}

	return nil
}
