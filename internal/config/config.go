// Package config loads gateway configuration from the environment, in the
// teacher's envOr/envInt/envDuration idiom (internal/config/config.go),
// narrowed from the teacher's account-pool/OAuth/admin-UI surface down to
// what a single-upstream identity-normalizing retry core needs.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds everything cmd/gateway needs to wire a Dispatcher, an
// Orchestrator, and a listening HTTP server.
type Config struct {
	// Server
	Host string
	Port int

	// Upstream
	UpstreamURL      string
	UpstreamHost     string
	ClaudeAPIVersion string
	ClaudeBetaHeader string

	// Proxy (optional; ProxyType empty means dial direct)
	ProxyType     string
	ProxyHost     string
	ProxyPort     int
	ProxyUsername string
	ProxyPassword string

	// Identity normalization
	CacheControlCap  int
	DefaultMaxTokens float64
	EnableWarmup     bool

	// Retry
	RequestTimeout     time.Duration
	MaxOverloadRetries int
	OverloadBackoff    time.Duration

	// Audit
	AuditDBPath string

	// Logging
	LogLevel string
}

// Load reads Config from the environment, falling back to the conventional
// single-upstream Claude Messages API defaults.
func Load() *Config {
	return &Config{
		Host: envOr("HOST", "0.0.0.0"),
		Port: envInt("PORT", 8089),

		UpstreamURL:      envOr("UPSTREAM_URL", "https://api.anthropic.com/v1/messages"),
		UpstreamHost:     envOr("UPSTREAM_HOST", "api.anthropic.com"),
		ClaudeAPIVersion: envOr("CLAUDE_API_VERSION", "2023-06-01"),
		ClaudeBetaHeader: envOr("CLAUDE_BETA_HEADER", "claude-code-20250219,oauth-2025-04-20,interleaved-thinking-2025-05-14,fine-grained-tool-streaming-2025-05-14"),

		ProxyType:     os.Getenv("PROXY_TYPE"),
		ProxyHost:     os.Getenv("PROXY_HOST"),
		ProxyPort:     envInt("PROXY_PORT", 0),
		ProxyUsername: os.Getenv("PROXY_USERNAME"),
		ProxyPassword: os.Getenv("PROXY_PASSWORD"),

		CacheControlCap:  envInt("MAX_CACHE_CONTROLS", 4),
		DefaultMaxTokens: float64(envInt("DEFAULT_MAX_TOKENS", 32000)),
		EnableWarmup:     envOr("ENABLE_WARMUP", "true") == "true",

		RequestTimeout:     envDuration("REQUEST_TIMEOUT", 5*time.Minute),
		MaxOverloadRetries: envInt("MAX_OVERLOAD_RETRIES", 2),
		OverloadBackoff:    envDuration("OVERLOAD_BACKOFF", 1*time.Second),

		AuditDBPath: envOr("AUDIT_DB_PATH", "./ccproxy-audit.db"),

		LogLevel: envOr("LOG_LEVEL", "info"),
	}
}

// Validate checks the fields Load cannot itself default sensibly.
func (c *Config) Validate() error {
	if c.UpstreamURL == "" {
		return errMissing("UPSTREAM_URL")
	}
	if c.UpstreamHost == "" {
		return errMissing("UPSTREAM_HOST")
	}
	return nil
}

type configError struct{ field string }

func (e *configError) Error() string { return "missing required env: " + e.field }
func errMissing(f string) error      { return &configError{field: f} }

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return fallback
}
