package identity

import (
	"net/http"
	"testing"
)

func TestApplyFingerprintHygieneDeletesBlocklist(t *testing.T) {
	h := http.Header{}
	h.Set("Sec-Ch-Ua", `"Chromium";v="120"`)
	h.Set("Origin", "https://example.com")

	ApplyFingerprintHygiene(h, true)

	if h.Get("sec-ch-ua") != "" || h.Get("origin") != "" {
		t.Fatalf("expected blocklisted headers removed")
	}
}

func TestApplyFingerprintHygieneSetsProtocolCriticalRegardlessOfCLI(t *testing.T) {
	h := http.Header{}
	ApplyFingerprintHygiene(h, true)
	if h.Get("anthropic-version") != "2023-06-01" {
		t.Fatalf("expected anthropic-version set")
	}
	if h.Get("x-app") != "cli" {
		t.Fatalf("expected x-app set")
	}
}

func TestApplyFingerprintHygienePreservesCLIOwnValues(t *testing.T) {
	h := http.Header{}
	h.Set("User-Agent", "claude-cli/1.0.200 (external, cli)")
	ApplyFingerprintHygiene(h, true)
	if h.Get("user-agent") != "claude-cli/1.0.200 (external, cli)" {
		t.Fatalf("expected CLI's own user-agent preserved, got %q", h.Get("user-agent"))
	}
}

func TestApplyFingerprintHygieneOverwritesNonCLIValues(t *testing.T) {
	h := http.Header{}
	h.Set("User-Agent", "Mozilla/5.0")
	ApplyFingerprintHygiene(h, false)
	if h.Get("user-agent") != "claude-cli/1.0.110 (external, cli)" {
		t.Fatalf("expected table user-agent for non-CLI, got %q", h.Get("user-agent"))
	}
}

func TestApplyFingerprintHygieneFillsAbsentTableHeadersEvenForCLI(t *testing.T) {
	h := http.Header{}
	ApplyFingerprintHygiene(h, true)
	if h.Get("x-stainless-lang") != "js" {
		t.Fatalf("expected absent table header filled in for CLI too, got %q", h.Get("x-stainless-lang"))
	}
}

func TestNormalizeAuthorizationPromotesAPIKey(t *testing.T) {
	h := http.Header{}
	h.Set("X-Api-Key", "sk-ant-test")
	NormalizeAuthorization(h)
	if h.Get("authorization") != "Bearer sk-ant-test" {
		t.Fatalf("got %q", h.Get("authorization"))
	}
	if h.Get("x-api-key") != "" {
		t.Fatalf("expected x-api-key removed")
	}
}

func TestNormalizeAuthorizationDoesNotOverwriteExisting(t *testing.T) {
	h := http.Header{}
	h.Set("X-Api-Key", "sk-ant-test")
	h.Set("Authorization", "Bearer existing-token")
	NormalizeAuthorization(h)
	if h.Get("authorization") != "Bearer existing-token" {
		t.Fatalf("expected existing authorization preserved, got %q", h.Get("authorization"))
	}
}

func TestNormalizeAuthorizationNoOpWithoutAPIKey(t *testing.T) {
	h := http.Header{}
	NormalizeAuthorization(h)
	if h.Get("authorization") != "" {
		t.Fatalf("expected no authorization header synthesized")
	}
}
