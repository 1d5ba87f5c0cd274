// Command gateway is the outer process wiring the retry core together:
// config, the ring-buffer log handler, the dispatcher's upstream
// transport, the retry orchestrator, the audit sink, and the HTTP server.
// Grounded on the teacher's cmd/relay/main.go, narrowed to the single
// upstream this core targets (no account store, no OAuth crypto, no
// scheduler — those are the account-pool layers spec.md §1 keeps out of
// scope).
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/shapegate/ccproxy/internal/audit"
	"github.com/shapegate/ccproxy/internal/config"
	"github.com/shapegate/ccproxy/internal/dispatch"
	"github.com/shapegate/ccproxy/internal/events"
	"github.com/shapegate/ccproxy/internal/identity"
	"github.com/shapegate/ccproxy/internal/retry"
	"github.com/shapegate/ccproxy/internal/server"
)

var version = "dev"

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logHandler := events.NewLogHandler(level, 1000)
	slog.SetDefault(slog.New(logHandler))
	slog.Info("gateway starting", "version", version)

	d := dispatch.New(dispatch.Config{
		FingerprintHost: cfg.UpstreamHost,
		Proxy:           proxyConfig(cfg),
		RequestTimeout:  cfg.RequestTimeout,
	})
	defer d.Close()

	idCfg := identity.DefaultConfig(cfg.UpstreamHost)
	idCfg.CacheControlCap = cfg.CacheControlCap
	idCfg.DefaultMaxTokens = cfg.DefaultMaxTokens

	orch := retry.New(retry.Config{
		Dispatcher:         d,
		Identity:           idCfg,
		UpstreamURL:        cfg.UpstreamURL,
		UpstreamHost:       cfg.UpstreamHost,
		MaxOverloadRetries: cfg.MaxOverloadRetries,
		OverloadBackoff:    overloadBackoff(cfg.OverloadBackoff),
		EnableWarmup:       cfg.EnableWarmup,
	})

	auditSink, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		slog.Error("audit sink init failed", "error", err)
		os.Exit(1)
	}
	defer auditSink.Close()
	slog.Info("audit sink ready", "path", cfg.AuditDBPath)

	bus := events.NewBus(200)

	srv := server.New(cfg, orch, d, auditSink, bus, version)
	if err := srv.Run(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// proxyConfig translates the flat env-driven proxy settings into a
// dispatch.ProxyConfig, or nil when no proxy type is configured.
func proxyConfig(cfg *config.Config) *dispatch.ProxyConfig {
	if cfg.ProxyType == "" {
		return nil
	}
	return &dispatch.ProxyConfig{
		Type:     cfg.ProxyType,
		Host:     cfg.ProxyHost,
		Port:     cfg.ProxyPort,
		Username: cfg.ProxyUsername,
		Password: cfg.ProxyPassword,
	}
}

// overloadBackoff implements spec §6's backoff schedule generalized from a
// single configured base: base*2^(attempt-1), i.e. {1000ms, 2000ms} for the
// canonical 1s base and MAX_OVERLOAD_RETRIES=2.
func overloadBackoff(base time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base * time.Duration(int64(1)<<uint(attempt-1))
	}
}
