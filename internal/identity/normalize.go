package identity

import (
	"fmt"
	"net/http"
	"strings"
)

// DefaultMaxTokens is injected when body.max_tokens is missing or not a
// positive number (spec §4.C step 7).
const DefaultMaxTokens float64 = 32000

// Config parameterizes Normalize for a deployment: which host this
// normalization is scoped to, the cache-control breakpoint cap, and the
// fallback max_tokens.
type Config struct {
	// IdentityHost is matched case-insensitively as a substring of the
	// request's destination host (spec §4.C: "Activation guard"). Normalize
	// is a no-op for any other host.
	IdentityHost string

	CacheControlCap int
	DefaultMaxTokens float64
}

// DefaultConfig returns the conventional single-upstream configuration.
func DefaultConfig(identityHost string) Config {
	return Config{
		IdentityHost:     identityHost,
		CacheControlCap:   DefaultCacheControlCap,
		DefaultMaxTokens: DefaultMaxTokens,
	}
}

// Result reports whether Normalize actually ran and, if so, which rule
// matched and whether the caller was detected as the CLI. The retry
// orchestrator records Applied and IsCLI in its metadata; it does not
// branch its retry decisions on the matched rule.
type Result struct {
	Applied bool
	Rule    ModelRule
	IsCLI   bool
}

// Normalize implements spec §4.C end to end: the activation guard, then
// steps 0 through 8 in fixed order, mutating headers and body in place.
// body must be the already-decoded JSON object (map[string]interface{});
// any other shape — including a JSON array or scalar top level, which the
// Messages API never sends but a malformed or adversarial client might —
// fails the activation guard and is passed through untouched.
func Normalize(host string, headers http.Header, body interface{}, cfg Config) (Result, error) {
	obj, rule, ok := activate(host, body, cfg)
	if !ok {
		return Result{}, nil
	}

	effectiveBeta := headers.Get("anthropic-beta")
	isCLI := DetectCLI(headers, effectiveBeta, obj["system"])

	// Step 1: beta flags.
	merged := MergeBetaFlags(effectiveBeta, rule.RequiredBetaFlags)
	if len(rule.StripBetaFlagPrefixes) > 0 {
		merged = StripBetaFlagPrefixes(merged, rule.StripBetaFlagPrefixes)
	}
	headers.Set("anthropic-beta", merged)

	// Step 2: thinking.
	switch rule.ThinkingMode {
	case ThinkingConcrete:
		obj["thinking"] = cloneMap(rule.ThinkingConfig)
	case ThinkingAbsent:
		delete(obj, "thinking")
	}

	// Step 3: temperature.
	if rule.RemoveTemperature {
		delete(obj, "temperature")
	}

	// Step 4: header fingerprint hygiene.
	ApplyFingerprintHygiene(headers, isCLI)

	// Step 5: authorization.
	NormalizeAuthorization(headers)

	// Step 6: body-shape enforcement.
	if err := ApplyBodyShape(obj, rule, isCLI); err != nil {
		return Result{}, fmt.Errorf("apply body shape: %w", err)
	}

	// Step 6.5: cache-control hygiene.
	EnforceCacheControl(obj, cfg.CacheControlCap)

	// Step 7: max_tokens default.
	applyMaxTokensDefault(obj, cfg.DefaultMaxTokens)

	// Step 8: framing hygiene. The body changed size; a stale
	// Content-Length would truncate or hang the upstream read.
	headers.Del("content-length")

	return Result{Applied: true, Rule: rule, IsCLI: isCLI}, nil
}

// activate implements spec §4.C's activation guard: this normalization only
// runs against the configured identity-sensitive host, only against a JSON
// object body, and only when body.model matches a table entry.
func activate(host string, body interface{}, cfg Config) (map[string]interface{}, ModelRule, bool) {
	if cfg.IdentityHost == "" || !strings.Contains(strings.ToLower(host), strings.ToLower(cfg.IdentityHost)) {
		return nil, ModelRule{}, false
	}
	obj, ok := body.(map[string]interface{})
	if !ok {
		return nil, ModelRule{}, false
	}
	model, ok := obj["model"].(string)
	if !ok {
		return nil, ModelRule{}, false
	}
	rule, ok := Match(model)
	if !ok {
		return nil, ModelRule{}, false
	}
	return obj, rule, true
}

func applyMaxTokensDefault(obj map[string]interface{}, fallback float64) {
	if n, ok := obj["max_tokens"].(float64); ok && n > 0 {
		return
	}
	obj["max_tokens"] = fallback
}
