package identity

import "strings"

// MergeBetaFlags implements spec §4.C step 1: parse the incoming
// comma-separated anthropic-beta value, trim and drop empties, then append
// every required flag not already present, in rule-declaration order.
// Client-negotiated flags are never dropped (spec §8 invariant).
func MergeBetaFlags(clientBeta string, required []string) string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(required)+4)

	appendToken := func(tok string) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return
		}
		if _, dup := seen[tok]; dup {
			return
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}

	for _, tok := range strings.Split(clientBeta, ",") {
		appendToken(tok)
	}
	for _, tok := range required {
		appendToken(tok)
	}

	return strings.Join(out, ",")
}

// StripBetaFlagPrefixes removes any token starting with one of prefixes
// from an already-merged beta value (SPEC_FULL §12).
func StripBetaFlagPrefixes(beta string, prefixes []string) string {
	if len(prefixes) == 0 {
		return beta
	}
	parts := strings.Split(beta, ",")
	out := make([]string, 0, len(parts))
	for _, raw := range parts {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}
		if hasAnyPrefix(tok, prefixes) {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, ",")
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
