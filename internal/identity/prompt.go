package identity

import "strings"

// NormalizeSystemArray coerces body.system into array form (spec §4.C step
// 6): an array passes through, a non-empty string becomes one text block,
// a single object with a "type" field is wrapped in a one-element array,
// anything else becomes an empty array.
func NormalizeSystemArray(system interface{}) []interface{} {
	switch s := system.(type) {
	case []interface{}:
		return s
	case string:
		if s == "" {
			return []interface{}{}
		}
		return []interface{}{map[string]interface{}{"type": "text", "text": s}}
	case map[string]interface{}:
		if _, ok := s["type"]; ok {
			return []interface{}{s}
		}
		return []interface{}{}
	default:
		return []interface{}{}
	}
}

// ephemeralCacheControl is the cache_control object applied to the
// identity and instructions blocks of the canonical prefix.
func ephemeralCacheControl() map[string]interface{} {
	return map[string]interface{}{"type": "ephemeral"}
}

func textBlock(text string) map[string]interface{} {
	return map[string]interface{}{"type": "text", "text": text}
}

func billingBlock() map[string]interface{} {
	return textBlock(BillingText)
}

func identityBlock() map[string]interface{} {
	return map[string]interface{}{
		"type":          "text",
		"text":          IdentityPrefix,
		"cache_control": ephemeralCacheControl(),
	}
}

func instructionsBlock() map[string]interface{} {
	return map[string]interface{}{
		"type":          "text",
		"text":          InstructionsText(),
		"cache_control": ephemeralCacheControl(),
	}
}

// CanonicalPrefix builds the full canonical system-prompt prefix: an
// optional billing block (only when BillingText is non-empty), then the
// identity block, then the instructions block (spec §4.C step 6 path a).
func CanonicalPrefix() []interface{} {
	var blocks []interface{}
	if BillingText != "" {
		blocks = append(blocks, billingBlock())
	}
	blocks = append(blocks, identityBlock(), instructionsBlock())
	return blocks
}

// blockText extracts a block's "text" field, or "" if absent/not a string.
func blockText(block interface{}) string {
	m, ok := block.(map[string]interface{})
	if !ok {
		return ""
	}
	text, _ := m["text"].(string)
	return text
}

func blockContainsBillingSentinel(block interface{}) bool {
	return strings.Contains(blockText(block), BillingSentinel)
}

func blockStartsWithIdentityPrefix(block interface{}) bool {
	return strings.HasPrefix(blockText(block), IdentityPrefix)
}

// looksLikeFullInstructions applies the heuristic from spec §4.C step 6
// path a: some block's text exceeds 5000 characters.
func looksLikeFullInstructions(blocks []interface{}) bool {
	for _, b := range blocks {
		if len(blockText(b)) > 5000 {
			return true
		}
	}
	return false
}

// ensureCacheControl sets cache_control: ephemeral on a block if it
// doesn't already carry one.
func ensureCacheControl(block interface{}) {
	m, ok := block.(map[string]interface{})
	if !ok {
		return
	}
	if _, has := m["cache_control"]; has {
		return
	}
	m["cache_control"] = ephemeralCacheControl()
}

