// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for humanthrift.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Schema locates the IDL documents messages are decoded against.
	Schema SchemaConfig `yaml:"schema"`

	// Service is the default service for method names that do not
	// name one ("ping" rather than "Calculator.ping").
	Service string `yaml:"service"`

	// Protocol configures the decoder.
	Protocol ProtocolConfig `yaml:"protocol"`

	// Gateway configures the serve command.
	Gateway GatewayConfig `yaml:"gateway"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Schema  *SchemaConfig  `yaml:"schema,omitempty"`
	Gateway *GatewayConfig `yaml:"gateway,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`
}

// SchemaConfig locates the schema. Exactly one of Paths and Snapshot
// is used: a snapshot, when set, wins.
type SchemaConfig struct {
	// Paths are schema documents or directories of them.
	Paths []string `yaml:"paths"`

	// Snapshot is a file written by "humanthrift schema snapshot".
	Snapshot string `yaml:"snapshot"`
}

// ProtocolConfig configures message decoding.
type ProtocolConfig struct {
	// MaxDepth bounds container and struct nesting.
	// Default: 64
	MaxDepth int `yaml:"max_depth"`

	// Selector is the protocol a multiplexed endpoint speaks before a
	// peer has chosen one: binary, compact, json or human.
	// Default: human
	Selector string `yaml:"selector"`
}

// GatewayConfig configures the gateway in front of a Thrift backend.
type GatewayConfig struct {
	// Network is "tcp" or "unix" for Listen.
	// Default: tcp
	Network string `yaml:"network"`

	// Listen is the address clients connect to.
	// Default: 127.0.0.1:9190
	Listen string `yaml:"listen"`

	// Multiplex accepts every protocol behind a one-byte selector
	// instead of human JSON only.
	Multiplex bool `yaml:"multiplex"`

	// Backend is the address of the Thrift service being fronted.
	// Default: 127.0.0.1:9090
	Backend string `yaml:"backend"`

	// BackendNetwork is "tcp" or "unix" for Backend.
	// Default: tcp
	BackendNetwork string `yaml:"backend_network"`

	// BackendProtocol is binary, compact or json.
	// Default: binary
	BackendProtocol string `yaml:"backend_protocol"`

	// Framed wraps backend connections in the framed transport.
	Framed bool `yaml:"framed"`

	// DialTimeout, IOTimeout and IdleTimeout are Go durations ("5s").
	// Defaults: 5s, 30s, 5m
	DialTimeout string `yaml:"dial_timeout"`
	IOTimeout   string `yaml:"io_timeout"`
	IdleTimeout string `yaml:"idle_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error. Debug traces every token.
	// Default: info
	Level string `yaml:"level"`
}

// Default returns the default configuration. LoadFile merges the
// config file over it, and commands run with it unchanged when no
// config file is given.
func Default() *Config {
	return &Config{
		Environment: Development,
		Protocol: ProtocolConfig{
			MaxDepth: 64,
			Selector: "human",
		},
		Gateway: GatewayConfig{
			Network:         "tcp",
			Listen:          "127.0.0.1:9190",
			Backend:         "127.0.0.1:9090",
			BackendNetwork:  "tcp",
			BackendProtocol: "binary",
			DialTimeout:     "5s",
			IOTimeout:       "30s",
			IdleTimeout:     "5m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the HUMANTHRIFT_CONFIG environment
// variable.
//
// There are no fallbacks: if HUMANTHRIFT_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("HUMANTHRIFT_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("HUMANTHRIFT_CONFIG environment variable not set; " +
			"set it to the path of your humanthrift.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// Relative schema paths are resolved against the directory holding the
// config file, so a config can sit next to the schema it names.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	cfg.resolvePaths(filepath.Dir(path))

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: quieter logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Log: &LogConfig{Level: "warn"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Schema != nil {
		if len(overrides.Schema.Paths) > 0 {
			c.Schema.Paths = overrides.Schema.Paths
		}
		if overrides.Schema.Snapshot != "" {
			c.Schema.Snapshot = overrides.Schema.Snapshot
		}
	}

	if overrides.Gateway != nil {
		if overrides.Gateway.Network != "" {
			c.Gateway.Network = overrides.Gateway.Network
		}
		if overrides.Gateway.Listen != "" {
			c.Gateway.Listen = overrides.Gateway.Listen
		}
		if overrides.Gateway.Backend != "" {
			c.Gateway.Backend = overrides.Gateway.Backend
		}
		if overrides.Gateway.BackendNetwork != "" {
			c.Gateway.BackendNetwork = overrides.Gateway.BackendNetwork
		}
		if overrides.Gateway.BackendProtocol != "" {
			c.Gateway.BackendProtocol = overrides.Gateway.BackendProtocol
		}
		// Booleans cannot be told apart from unset, so they always apply.
		c.Gateway.Framed = overrides.Gateway.Framed
		c.Gateway.Multiplex = overrides.Gateway.Multiplex
		if overrides.Gateway.DialTimeout != "" {
			c.Gateway.DialTimeout = overrides.Gateway.DialTimeout
		}
		if overrides.Gateway.IOTimeout != "" {
			c.Gateway.IOTimeout = overrides.Gateway.IOTimeout
		}
		if overrides.Gateway.IdleTimeout != "" {
			c.Gateway.IdleTimeout = overrides.Gateway.IdleTimeout
		}
	}

	if overrides.Log != nil && overrides.Log.Level != "" {
		c.Log.Level = overrides.Log.Level
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	for i, path := range c.Schema.Paths {
		c.Schema.Paths[i] = expandVars(path, vars)
	}
	c.Schema.Snapshot = expandVars(c.Schema.Snapshot, vars)
	c.Gateway.Listen = expandVars(c.Gateway.Listen, vars)
	c.Gateway.Backend = expandVars(c.Gateway.Backend, vars)
}

func (c *Config) resolvePaths(base string) {
	for i, path := range c.Schema.Paths {
		if path != "" && !filepath.IsAbs(path) {
			c.Schema.Paths[i] = filepath.Join(base, path)
		}
	}
	if c.Schema.Snapshot != "" && !filepath.IsAbs(c.Schema.Snapshot) {
		c.Schema.Snapshot = filepath.Join(base, c.Schema.Snapshot)
	}
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var (
	selectors        = []string{"binary", "compact", "json", "human"}
	backendProtocols = []string{"binary", "compact", "json"}
	networks         = []string{"tcp", "unix"}
	logLevels        = []string{"debug", "info", "warn", "error"}
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if len(c.Schema.Paths) == 0 && c.Schema.Snapshot == "" {
		errs = append(errs, fmt.Errorf("schema.paths or schema.snapshot is required"))
	}

	if c.Protocol.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("protocol.max_depth must be positive, got %d", c.Protocol.MaxDepth))
	}
	if !slices.Contains(selectors, c.Protocol.Selector) {
		errs = append(errs, fmt.Errorf("protocol.selector must be one of: %v", selectors))
	}

	if !slices.Contains(networks, c.Gateway.Network) {
		errs = append(errs, fmt.Errorf("gateway.network must be one of: %v", networks))
	}
	if c.Gateway.Listen == "" {
		errs = append(errs, fmt.Errorf("gateway.listen is required"))
	}
	if c.Gateway.Backend == "" {
		errs = append(errs, fmt.Errorf("gateway.backend is required"))
	}
	if !slices.Contains(networks, c.Gateway.BackendNetwork) {
		errs = append(errs, fmt.Errorf("gateway.backend_network must be one of: %v", networks))
	}
	if !slices.Contains(backendProtocols, c.Gateway.BackendProtocol) {
		errs = append(errs, fmt.Errorf("gateway.backend_protocol must be one of: %v", backendProtocols))
	}
	if _, _, _, err := c.Gateway.Timeouts(); err != nil {
		errs = append(errs, err)
	}

	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Timeouts parses the dial, I/O and idle timeouts. An empty string is
// zero, which disables that timeout.
func (g *GatewayConfig) Timeouts() (dial, io, idle time.Duration, err error) {
	parse := func(key, value string) time.Duration {
		if value == "" || err != nil {
			return 0
		}
		duration, parseErr := time.ParseDuration(value)
		if parseErr != nil {
			err = fmt.Errorf("gateway.%s: %w", key, parseErr)
			return 0
		}
		if duration < 0 {
			err = fmt.Errorf("gateway.%s must not be negative", key)
			return 0
		}
		return duration
	}
	dial = parse("dial_timeout", g.DialTimeout)
	io = parse("io_timeout", g.IOTimeout)
	idle = parse("idle_timeout", g.IdleTimeout)
	return dial, io, idle, err
}
