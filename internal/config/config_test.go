package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindConfig_Explicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")
	os.WriteFile(path, []byte("data_dir: ./data\n"), 0600)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_SearchPath(t *testing.T) {
	// When no config exists anywhere, should error. Override
	// searchPathsFunc to avoid finding real config files on the
	// machine running the tests.
	dir := t.TempDir()
	orig := searchPathsFunc
	searchPathsFunc = func() []string {
		return []string{filepath.Join(dir, "config.yaml")}
	}
	defer func() { searchPathsFunc = orig }()

	_, err := FindConfig("")
	if err == nil {
		t.Fatal("FindConfig(\"\") with no config files should error")
	}
}

func TestFindConfig_CWD(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("data_dir: ./data\n"), 0600)

	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "config.yaml" {
		t.Errorf("FindConfig(\"\") = %q, want %q", got, "config.yaml")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("func_resolver:\n  token: ${NOSTRGRAPH_TEST_TOKEN}\n"), 0600)
	os.Setenv("NOSTRGRAPH_TEST_TOKEN", "secret123")
	defer os.Unsetenv("NOSTRGRAPH_TEST_TOKEN")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.FuncResolver.Token != "secret123" {
		t.Errorf("token = %q, want %q", cfg.FuncResolver.Token, "secret123")
	}
}

func TestLoad_RelayDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("relay:\n  default_urls:\n    - wss://relay.example.com\n"), 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(cfg.Relay.DefaultURLs) != 1 || cfg.Relay.DefaultURLs[0] != "wss://relay.example.com" {
		t.Errorf("relay.default_urls = %v, want [wss://relay.example.com]", cfg.Relay.DefaultURLs)
	}
	if cfg.Relay.ReconnectSec != 5 {
		t.Errorf("relay.reconnect_sec default = %d, want 5", cfg.Relay.ReconnectSec)
	}
}

func TestApplyDefaults_CachePaths(t *testing.T) {
	cfg := Default()
	if cfg.ProfileCache.Path == "" {
		t.Error("profile_cache.path should default to a non-empty path")
	}
	if cfg.FuncDefCache.Path == "" {
		t.Error("funcdef_cache.path should default to a non-empty path")
	}
	if cfg.ProfileCache.MaxEntries != 10000 {
		t.Errorf("profile_cache.max_entries default = %d, want 10000", cfg.ProfileCache.MaxEntries)
	}
}

func TestValidate_SamplingDenominatorNegative(t *testing.T) {
	cfg := Default()
	cfg.Sampling.DefaultDenominator = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for negative sampling.default_denominator")
	}
}

func TestValidate_TelemetryEnabledMissingBroker(t *testing.T) {
	cfg := Default()
	cfg.Telemetry = TelemetryConfig{Enabled: true}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for telemetry enabled without broker_url")
	}
}

func TestTelemetryConfig_Configured(t *testing.T) {
	tests := []struct {
		name string
		cfg  TelemetryConfig
		want bool
	}{
		{"all set", TelemetryConfig{Enabled: true, BrokerURL: "tcp://localhost:1883"}, true},
		{"disabled", TelemetryConfig{Enabled: false, BrokerURL: "tcp://localhost:1883"}, false},
		{"no broker", TelemetryConfig{Enabled: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "deafening"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}
