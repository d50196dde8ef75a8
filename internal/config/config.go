package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the reasoning tool server.
type Config struct {
	Port      int             `yaml:"port" validate:"min=1,max=65535"`
	Version   string          `yaml:"version" validate:"required"`
	LogLevel  string          `yaml:"log_level" validate:"oneof=trace debug info warn error"`
	Sessions  SessionConfig   `yaml:"sessions"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type SessionConfig struct {
	IdleTTL         time.Duration `yaml:"idle_ttl" validate:"gte=0"`
	ReapInterval    time.Duration `yaml:"reap_interval" validate:"gte=0"`
	MaxSessions     int           `yaml:"max_sessions" validate:"gte=0"`
	DuplicatePolicy string        `yaml:"duplicate_policy" validate:"oneof=permit reject revise"`
	FeedSize        int           `yaml:"feed_size" validate:"min=1,max=10000"`
}

// RateLimitConfig bounds requests per client IP. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" validate:"gte=0"`
	Burst int     `yaml:"burst" validate:"gte=0"`
}

type AuthConfig struct {
	// Empty disables API-key auth.
	APIKeys []string `yaml:"api_keys" validate:"dive,min=8"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=Enabled true"`
	ServiceName  string `yaml:"service_name" validate:"required"`
}

var validate = validator.New()

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:     8080,
		Version:  "0.1.0",
		LogLevel: "info",
		Sessions: SessionConfig{
			IdleTTL:         30 * time.Minute,
			ReapInterval:    time.Minute,
			MaxSessions:     1000,
			DuplicatePolicy: "permit",
			FeedSize:        50,
		},
		RateLimit: RateLimitConfig{
			RPS:   20,
			Burst: 40,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "ftl-tool-think",
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// THINK_CONFIG (if set) and environment overrides, then validates it.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("THINK_CONFIG"))
}

// LoadFile is Load with an explicit config file path. An empty path skips
// the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envInt("THINK_PORT", c.Port)
	c.Version = envStr("THINK_VERSION", c.Version)
	c.LogLevel = strings.ToLower(envStr("THINK_LOG_LEVEL", c.LogLevel))

	c.Sessions.IdleTTL = envDuration("THINK_SESSION_IDLE_TTL", c.Sessions.IdleTTL)
	c.Sessions.ReapInterval = envDuration("THINK_REAP_INTERVAL", c.Sessions.ReapInterval)
	c.Sessions.MaxSessions = envInt("THINK_MAX_SESSIONS", c.Sessions.MaxSessions)
	c.Sessions.DuplicatePolicy = strings.ToLower(envStr("THINK_DUPLICATE_POLICY", c.Sessions.DuplicatePolicy))
	c.Sessions.FeedSize = envInt("THINK_FEED_SIZE", c.Sessions.FeedSize)

	c.RateLimit.RPS = envFloat("THINK_RATE_LIMIT_RPS", c.RateLimit.RPS)
	c.RateLimit.Burst = envInt("THINK_RATE_LIMIT_BURST", c.RateLimit.Burst)

	if keys := envList("THINK_API_KEYS"); keys != nil {
		c.Auth.APIKeys = keys
	}

	c.Telemetry.Enabled = envBool("OTEL_ENABLED", c.Telemetry.Enabled)
	c.Telemetry.OTLPEndpoint = envStr("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.OTLPEndpoint)
	c.Telemetry.ServiceName = envStr("OTEL_SERVICE_NAME", c.Telemetry.ServiceName)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated variable; nil when unset.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
