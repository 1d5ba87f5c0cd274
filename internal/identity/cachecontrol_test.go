package identity

import "testing"

func blockWithCacheControl(text string, ttl string) map[string]interface{} {
	cc := map[string]interface{}{"type": "ephemeral"}
	if ttl != "" {
		cc["ttl"] = ttl
	}
	return map[string]interface{}{"type": "text", "text": text, "cache_control": cc}
}

func TestEnforceCacheControlStripsTTL(t *testing.T) {
	obj := map[string]interface{}{
		"system": []interface{}{blockWithCacheControl("a", "1h")},
	}
	EnforceCacheControl(obj, DefaultCacheControlCap)

	system := obj["system"].([]interface{})
	cc := system[0].(map[string]interface{})["cache_control"].(map[string]interface{})
	if _, has := cc["ttl"]; has {
		t.Fatalf("expected ttl stripped")
	}
}

func TestEnforceCacheControlDropsBreakpointsBeyondCap(t *testing.T) {
	obj := map[string]interface{}{
		"system": []interface{}{
			blockWithCacheControl("a", ""),
			blockWithCacheControl("b", ""),
		},
		"messages": []interface{}{
			map[string]interface{}{
				"role": "user",
				"content": []interface{}{
					blockWithCacheControl("c", ""),
					blockWithCacheControl("d", ""),
				},
			},
		},
	}
	EnforceCacheControl(obj, 3)

	system := obj["system"].([]interface{})
	if _, has := system[0].(map[string]interface{})["cache_control"]; !has {
		t.Fatalf("expected first system block's breakpoint kept")
	}
	if _, has := system[1].(map[string]interface{})["cache_control"]; !has {
		t.Fatalf("expected second system block's breakpoint kept")
	}

	messages := obj["messages"].([]interface{})
	content := messages[0].(map[string]interface{})["content"].([]interface{})
	if _, has := content[0].(map[string]interface{})["cache_control"]; !has {
		t.Fatalf("expected third overall breakpoint (budget exhausted here) kept")
	}
	if _, has := content[1].(map[string]interface{})["cache_control"]; has {
		t.Fatalf("expected fourth overall breakpoint dropped")
	}
}

func TestEnforceCacheControlIgnoresBlocksWithoutCacheControl(t *testing.T) {
	obj := map[string]interface{}{
		"system": []interface{}{textBlock("plain")},
	}
	EnforceCacheControl(obj, DefaultCacheControlCap)

	system := obj["system"].([]interface{})
	if _, has := system[0].(map[string]interface{})["cache_control"]; has {
		t.Fatalf("expected no cache_control to be added where none existed")
	}
}
