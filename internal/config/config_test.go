package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.UpstreamHost != "api.anthropic.com" {
		t.Fatalf("expected default upstream host, got %q", cfg.UpstreamHost)
	}
	if cfg.MaxOverloadRetries != 2 {
		t.Fatalf("expected default overload retry count 2, got %d", cfg.MaxOverloadRetries)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	t.Setenv("UPSTREAM_HOST", "example.test")
	t.Setenv("MAX_OVERLOAD_RETRIES", "5")
	t.Setenv("ENABLE_WARMUP", "false")

	cfg := Load()
	if cfg.UpstreamHost != "example.test" {
		t.Fatalf("expected overridden upstream host, got %q", cfg.UpstreamHost)
	}
	if cfg.MaxOverloadRetries != 5 {
		t.Fatalf("expected overridden retry count, got %d", cfg.MaxOverloadRetries)
	}
	if cfg.EnableWarmup {
		t.Fatalf("expected warmup disabled")
	}
}

func TestValidateRequiresUpstreamURL(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "")
	cfg := Load()
	cfg.UpstreamURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for missing upstream URL")
	}
}
