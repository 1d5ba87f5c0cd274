package identity

import "strings"

// ThinkingMode distinguishes "inject a concrete thinking config" from
// "remove whatever thinking config is present" (spec §3 ModelRule:
// thinkingConfig is "either a concrete object... or 'absent'").
type ThinkingMode int

const (
	// ThinkingUnset means the rule doesn't touch body.thinking at all.
	// (Not used by the built-in table — every rule is explicit per spec
	// §3's "either ... or absent" phrasing — but kept so a future rule
	// can opt out of step 2 entirely without reinterpreting a zero value.)
	ThinkingUnset ThinkingMode = iota
	ThinkingAbsent
	ThinkingConcrete
)

// ModelRule is one entry of the ordered, first-match-wins table keyed by a
// case-insensitive substring of the request body's model field (spec §3).
type ModelRule struct {
	// Substring matched case-insensitively against body.model.
	Substring string

	RequiredBetaFlags []string
	ThinkingMode       ThinkingMode
	ThinkingConfig     map[string]interface{}
	RemoveTemperature  bool
	RequireIdentity    bool

	// StripBetaFlagPrefixes removes any already-merged beta token starting
	// with one of these prefixes, applied after step 1's merge (SPEC_FULL
	// §12, grounded on the teacher's filterBetaForHaiku).
	StripBetaFlagPrefixes []string
}

// Table is the built-in ModelRule table (spec §6: "at least three entries
// by convention"). More specific substrings are listed first since the
// first match wins.
var Table = []ModelRule{
	{
		// Large/flagship tier: identity required, adaptive thinking,
		// temperature stripped (it conflicts with thinking on this tier).
		Substring:         "opus",
		RequiredBetaFlags: []string{"claude-code-20250219", "oauth-2025-04-20", "interleaved-thinking-2025-05-14", "fine-grained-tool-streaming-2025-05-14"},
		ThinkingMode:      ThinkingConcrete,
		ThinkingConfig:    map[string]interface{}{"type": "enabled", "budget_tokens": 16000},
		RemoveTemperature: true,
		RequireIdentity:   true,
	},
	{
		// Mid tier: same shape as the large tier but a smaller thinking
		// budget.
		Substring:         "sonnet",
		RequiredBetaFlags: []string{"claude-code-20250219", "oauth-2025-04-20", "interleaved-thinking-2025-05-14", "fine-grained-tool-streaming-2025-05-14"},
		ThinkingMode:      ThinkingConcrete,
		ThinkingConfig:    map[string]interface{}{"type": "enabled", "budget_tokens": 8000},
		RemoveTemperature: true,
		RequireIdentity:   true,
	},
	{
		// Small/fast tier: no identity enforcement, no thinking. The
		// upstream rejects claude-code-* and fine-grained-tool-streaming-*
		// beta flags for this tier (SPEC_FULL §12).
		Substring:             "haiku",
		RequiredBetaFlags:     []string{"oauth-2025-04-20"},
		ThinkingMode:          ThinkingAbsent,
		RemoveTemperature:     false,
		RequireIdentity:       false,
		StripBetaFlagPrefixes: []string{"claude-code-", "fine-grained-tool-streaming-"},
	},
}

// Match returns the first rule whose substring appears in model,
// case-insensitively (spec §3: "First match wins; rules must be listed
// more-specific first").
func Match(model string) (ModelRule, bool) {
	lower := strings.ToLower(model)
	for _, rule := range Table {
		if strings.Contains(lower, rule.Substring) {
			return rule, true
		}
	}
	return ModelRule{}, false
}
