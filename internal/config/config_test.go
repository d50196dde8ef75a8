package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fastertools/ftl-tool-think/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "think.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := config.LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Sessions.DuplicatePolicy != "permit" {
		t.Errorf("DuplicatePolicy = %q, want permit", cfg.Sessions.DuplicatePolicy)
	}
	if cfg.Sessions.IdleTTL != 30*time.Minute {
		t.Errorf("IdleTTL = %v, want 30m", cfg.Sessions.IdleTTL)
	}
	if len(cfg.Auth.APIKeys) != 0 {
		t.Errorf("APIKeys = %v, want none", cfg.Auth.APIKeys)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeConfig(t, `
port: 9090
log_level: debug
sessions:
  idle_ttl: 5m
  duplicate_policy: reject
  feed_size: 10
rate_limit:
  rps: 0
`)
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Port != 9090 || cfg.LogLevel != "debug" {
		t.Errorf("Port/LogLevel = %d/%q", cfg.Port, cfg.LogLevel)
	}
	if cfg.Sessions.IdleTTL != 5*time.Minute {
		t.Errorf("IdleTTL = %v, want 5m", cfg.Sessions.IdleTTL)
	}
	if cfg.Sessions.DuplicatePolicy != "reject" || cfg.Sessions.FeedSize != 10 {
		t.Errorf("Sessions = %+v", cfg.Sessions)
	}
	if cfg.RateLimit.RPS != 0 {
		t.Errorf("RateLimit.RPS = %v, want 0", cfg.RateLimit.RPS)
	}
	// untouched keys keep their defaults
	if cfg.Sessions.MaxSessions != 1000 {
		t.Errorf("MaxSessions = %d, want 1000", cfg.Sessions.MaxSessions)
	}
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "port: 9090\n")
	t.Setenv("THINK_PORT", "7070")
	t.Setenv("THINK_DUPLICATE_POLICY", "Revise")
	t.Setenv("THINK_API_KEYS", "key-one-123, key-two-456 ,")
	t.Setenv("THINK_SESSION_IDLE_TTL", "90s")

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Port)
	}
	if cfg.Sessions.DuplicatePolicy != "revise" {
		t.Errorf("DuplicatePolicy = %q, want revise", cfg.Sessions.DuplicatePolicy)
	}
	if len(cfg.Auth.APIKeys) != 2 || cfg.Auth.APIKeys[1] != "key-two-456" {
		t.Errorf("APIKeys = %v", cfg.Auth.APIKeys)
	}
	if cfg.Sessions.IdleTTL != 90*time.Second {
		t.Errorf("IdleTTL = %v, want 90s", cfg.Sessions.IdleTTL)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad policy":    "sessions:\n  duplicate_policy: maybe\n",
		"bad port":      "port: 70000\n",
		"bad log level": "log_level: loud\n",
		"short api key": "auth:\n  api_keys: [abc]\n",
		"not yaml":      "port: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := config.LoadFile(writeConfig(t, body)); err == nil {
				t.Error("LoadFile() error = nil, want error")
			}
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile() error = nil for missing file")
	}
}

func TestLoad_UsesThinkConfig(t *testing.T) {
	t.Setenv("THINK_CONFIG", writeConfig(t, "version: 9.9.9\n"))
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Version != "9.9.9" {
		t.Errorf("Version = %q, want 9.9.9", cfg.Version)
	}
}
