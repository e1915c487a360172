// Package config handles nostrgraph engine configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/nostrgraph/config.yaml, /config/config.yaml,
// /etc/nostrgraph/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "nostrgraph", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/nostrgraph/config.yaml")
	return paths
}

// searchPathsFunc is indirected so tests can override the search order
// without depending on the real filesystem layout of the machine running
// the tests.
var searchPathsFunc = DefaultSearchPaths

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches searchPathsFunc()'s paths and returns the first that
// exists. Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	paths := searchPathsFunc()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", paths)
}

// Config holds all ambient engine configuration. This is distinct from a
// graph document (nodes/edges), which is the engine's own serialised
// artifact, not ambient configuration.
type Config struct {
	DataDir      string             `yaml:"data_dir"`
	LogLevel     string             `yaml:"log_level"`
	Relay        RelayConfig        `yaml:"relay"`
	Sampling     SamplingConfig     `yaml:"sampling"`
	ProfileCache CacheConfig        `yaml:"profile_cache"`
	FuncDefCache CacheConfig        `yaml:"funcdef_cache"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	FuncResolver FuncResolverConfig `yaml:"func_resolver"`
}

// RelayConfig holds default relay connection settings. They are loaded
// and defaulted here only; RelaySourceNode and adapters/relaytransport
// do not read them.
type RelayConfig struct {
	DefaultURLs   []string `yaml:"default_urls"`
	ReconnectSec  int      `yaml:"reconnect_sec"`
	MaxReconnects int      `yaml:"max_reconnects"`
}

// SamplingConfig holds default numerator/denominator values. They are
// loaded and defaulted here only; the graph factory builds SamplingNode
// with a 1/1 ratio and does not read them.
type SamplingConfig struct {
	DefaultNumerator   int `yaml:"default_numerator"`
	DefaultDenominator int `yaml:"default_denominator"`
}

// CacheConfig bounds a process-wide cache's size and lifetime.
type CacheConfig struct {
	Path       string `yaml:"path"`
	MaxEntries int    `yaml:"max_entries"`
	TTLSec     int    `yaml:"ttl_sec"`
}

// TelemetryConfig defines the optional MQTT telemetry sidecar.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BrokerURL string `yaml:"broker_url"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// FuncResolverConfig defines the GitHub-backed function definition resolver.
type FuncResolverConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

// Configured reports whether the telemetry sidecar has enough information
// to connect.
func (c TelemetryConfig) Configured() bool {
	return c.Enabled && c.BrokerURL != ""
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates
// the result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${GITHUB_TOKEN}).
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. After this, callers can read any field
// without checking for empty strings or zero values.
func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.Relay.ReconnectSec == 0 {
		c.Relay.ReconnectSec = 5
	}
	if c.Relay.MaxReconnects == 0 {
		c.Relay.MaxReconnects = 10
	}
	if c.Sampling.DefaultDenominator == 0 {
		c.Sampling.DefaultDenominator = 1
	}
	if c.ProfileCache.Path == "" {
		c.ProfileCache.Path = filepath.Join(c.DataDir, "profiles.db")
	}
	if c.ProfileCache.MaxEntries == 0 {
		c.ProfileCache.MaxEntries = 10000
	}
	if c.FuncDefCache.Path == "" {
		c.FuncDefCache.Path = filepath.Join(c.DataDir, "funcdefs.db")
	}
	if c.FuncDefCache.MaxEntries == 0 {
		c.FuncDefCache.MaxEntries = 500
	}
	if c.Telemetry.Topic == "" {
		c.Telemetry.Topic = "nostrgraph/status"
	}
	if c.Telemetry.ClientID == "" {
		c.Telemetry.ClientID = "nostrgraph"
	}
	if c.FuncResolver.BaseURL == "" {
		c.FuncResolver.BaseURL = "https://api.github.com"
	}
}

// Validate checks that the configuration is internally consistent.
// It runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.Sampling.DefaultDenominator < 0 {
		return fmt.Errorf("sampling.default_denominator must be >= 0, got %d", c.Sampling.DefaultDenominator)
	}
	if c.ProfileCache.MaxEntries < 1 {
		return fmt.Errorf("profile_cache.max_entries must be >= 1, got %d", c.ProfileCache.MaxEntries)
	}
	if c.FuncDefCache.MaxEntries < 1 {
		return fmt.Errorf("funcdef_cache.max_entries must be >= 1, got %d", c.FuncDefCache.MaxEntries)
	}
	if c.Telemetry.Enabled && c.Telemetry.BrokerURL == "" {
		return fmt.Errorf("telemetry.broker_url required when telemetry.enabled is true")
	}
	return nil
}

// Default returns a default configuration suitable for local development
// against the public relay set. All defaults are already applied.
func Default() *Config {
	cfg := &Config{
		Relay: RelayConfig{
			DefaultURLs: []string{"wss://relay.damus.io", "wss://nos.lol"},
		},
	}
	cfg.applyDefaults()
	return cfg
}
