package identity

import (
	"net/http"
	"strings"
)

// StainlessPrefix identifies the x-stainless-* SDK fingerprint headers
// (teacher: internal/identity/stainless.go).
const StainlessPrefix = "x-stainless-"

// cliUserAgentPrefix is the User-Agent prefix a real CLI client sends.
const cliUserAgentPrefix = "claude-cli/"

// cliExclusiveBetaFlag only a real CLI negotiates this capability token.
const cliExclusiveBetaFlag = "claude-code-20250219"

// fingerprintBlocklist (spec §4.C step 4) is deleted unconditionally before
// any other header work — these only ever leak a browser's identity, never
// a CLI's.
var fingerprintBlocklist = []string{
	"sec-ch-ua",
	"sec-ch-ua-platform",
	"sec-ch-ua-mobile",
	"sec-fetch-site",
	"sec-fetch-mode",
	"sec-fetch-dest",
	"accept-language",
	"priority",
	"origin",
	"referer",
}

// protocolCriticalHeaders are always set from the table, CLI or not (spec
// §4.C step 4).
var protocolCriticalHeaders = map[string]string{
	"accept":          "application/json",
	"accept-encoding": "gzip, deflate, br",
	"anthropic-dangerous-direct-browser-access": "true",
	"anthropic-version":                         "2023-06-01",
	"x-app":                                      "cli",
}

// fingerprintTableHeaders are overwritten from the table only when the
// caller isn't a CLI (spec §4.C step 4: CLI callers keep their own values
// "to avoid version-mismatch detection by upstream").
var fingerprintTableHeaders = map[string]string{
	"user-agent":                   "claude-cli/1.0.110 (external, cli)",
	"x-stainless-lang":             "js",
	"x-stainless-package-version":  "0.60.0",
	"x-stainless-os":               "Linux",
	"x-stainless-arch":             "x64",
	"x-stainless-runtime":          "node",
	"x-stainless-runtime-version":  "v20.18.1",
	"x-stainless-retry-count":      "0",
}

// ApplyFingerprintHygiene implements spec §4.C step 4: delete the
// browser-fingerprint blocklist, then set protocol-critical headers
// unconditionally, then set fingerprint headers from the table unless the
// caller is a CLI (whose own values are preserved) — and, regardless of
// isCli, fill in anything from the table that's simply absent.
func ApplyFingerprintHygiene(h http.Header, isCli bool) {
	for _, name := range fingerprintBlocklist {
		h.Del(name)
	}

	for name, value := range protocolCriticalHeaders {
		h.Set(name, value)
	}

	for name, value := range fingerprintTableHeaders {
		if h.Get(name) == "" {
			h.Set(name, value)
			continue
		}
		if !isCli {
			h.Set(name, value)
		}
	}
}

// NormalizeAuthorization implements spec §4.C step 5.
func NormalizeAuthorization(h http.Header) {
	apiKey := h.Get("x-api-key")
	if apiKey == "" {
		return
	}
	if h.Get("authorization") == "" {
		h.Set("authorization", "Bearer "+apiKey)
	}
	h.Del("x-api-key")
}

// isCliUserAgent reports whether ua looks like the first-party CLI.
func isCliUserAgent(ua string) bool {
	return strings.HasPrefix(ua, cliUserAgentPrefix)
}

// hasStainlessPrefix reports whether name (already-lowercased) names an
// x-stainless-* header.
func hasStainlessPrefix(name string) bool {
	return strings.HasPrefix(strings.ToLower(name), StainlessPrefix)
}
