package identity

// DefaultCacheControlCap is the maximum number of cache_control breakpoints
// the upstream accepts in one request (SPEC_FULL §12, step 6.5 — grounded on
// the teacher's enforceCacheControl/stripAndCountCacheControl). Exceeding it
// is a hard 400 from the upstream, so this runs unconditionally after body
// shaping, not just when a rule requires identity.
const DefaultCacheControlCap = 4

// EnforceCacheControl walks body.system then body.messages in wire order,
// strips any "ttl" field from each cache_control object (this build's
// upstream only understands the "ephemeral" type), and deletes cache_control
// entirely from any block beyond the first cap breakpoints encountered. The
// blocks this package injects itself (identity, instructions) are walked
// first and so are never the ones dropped.
func EnforceCacheControl(obj map[string]interface{}, breakpointCap int) {
	budget := breakpointCap
	if system, ok := obj["system"].([]interface{}); ok {
		walkBlocksForCacheControl(system, &budget)
	}
	if messages, ok := obj["messages"].([]interface{}); ok {
		for _, m := range messages {
			msg, ok := m.(map[string]interface{})
			if !ok {
				continue
			}
			content, ok := msg["content"].([]interface{})
			if !ok {
				continue
			}
			walkBlocksForCacheControl(content, &budget)
		}
	}
}

func walkBlocksForCacheControl(blocks []interface{}, budget *int) {
	for _, b := range blocks {
		block, ok := b.(map[string]interface{})
		if !ok {
			continue
		}
		cc, ok := block["cache_control"].(map[string]interface{})
		if !ok {
			continue
		}
		if *budget <= 0 {
			delete(block, "cache_control")
			continue
		}
		delete(cc, "ttl")
		*budget--
	}
}
