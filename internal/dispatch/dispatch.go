// Package dispatch builds the single outbound transport the retry
// orchestrator sends normalized requests through (distilled spec component
// F). Adapted from the teacher's internal/transport: the same utls
// Chrome-fingerprint dialer and SOCKS5/HTTP-CONNECT proxy support, collapsed
// from a per-account connection pool down to one shared RoundTripper since
// this core has no account concept.
package dispatch

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// ProxyConfig describes an upstream proxy to dial through instead of
// connecting directly. Type is "socks5" or "http" (CONNECT).
type ProxyConfig struct {
	Type     string
	Host     string
	Port     int
	Username string
	Password string
}

// Config parameterizes the Dispatcher.
type Config struct {
	// FingerprintHost is matched case-insensitively as a substring of the
	// outbound request's host. Without a Proxy, only connections to this
	// host get the utls Chrome ClientHello and every other destination uses
	// a standard crypto/tls handshake, since the fingerprint only matters
	// against the identity-sensitive upstream this gateway impersonates a
	// CLI against. With a Proxy, every tunnelled connection gets the utls
	// handshake regardless of host.
	FingerprintHost string

	Proxy          *ProxyConfig
	RequestTimeout time.Duration
}

// Dispatcher sends a normalized, sanitized request to the upstream and
// returns its response unread — streaming bodies are the caller's (the
// streaming gate's) responsibility to drain.
type Dispatcher struct {
	client          *http.Client
	fingerprintHost string
}

// New builds a Dispatcher from cfg. Construction is cheap enough to call
// once at startup; the returned Dispatcher is safe for concurrent use.
func New(cfg Config) *Dispatcher {
	rt := buildRoundTripper(cfg)
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Dispatcher{
		client:          &http.Client{Transport: rt, Timeout: timeout},
		fingerprintHost: cfg.FingerprintHost,
	}
}

// Send issues req and returns the raw response. The caller owns closing
// resp.Body. Logging here is connection-level only (host, size, timing) —
// never request content, matching spec §7's "the core does not log to any
// external sink itself".
func (d *Dispatcher) Send(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		slog.Debug("dispatch failed", "host", req.URL.Host, "started", humanize.Time(start), "error", err)
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	slog.Debug("dispatch complete", "host", req.URL.Host, "status", resp.StatusCode,
		"request_bytes", humanize.Bytes(uint64(max64(req.ContentLength, 0))),
		"started", humanize.Time(start))
	return resp, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// Close releases idle connections held by the underlying transport.
func (d *Dispatcher) Close() {
	if t, ok := d.client.Transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
}

func buildRoundTripper(cfg Config) http.RoundTripper {
	if cfg.Proxy != nil {
		return &http.Transport{
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     5 * time.Minute,
			DialTLSContext:      proxyDialer(cfg.Proxy),
		}
	}
	return directRoundTripper(cfg.FingerprintHost)
}

// fingerprintMatches reports whether addr (host:port) targets the host this
// Dispatcher is configured to impersonate the CLI's TLS fingerprint against.
func fingerprintMatches(fingerprintHost, addr string) bool {
	if fingerprintHost == "" {
		return false
	}
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	return strings.Contains(strings.ToLower(host), strings.ToLower(fingerprintHost))
}
