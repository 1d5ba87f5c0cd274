package conversation

// ScanResult is the outcome of Scan-and-strip-all (spec §4.A).
type ScanResult struct {
	Messages   []Message
	RemovedIDs []string
	HadOrphans bool
}

// ScanStripAll walks a conversation, collects every tool_use id declared
// anywhere in it (across all roles — a mislabeled turn still declares a
// real id), and drops any tool_result block whose tool_use_id doesn't
// appear among them. It never mutates its input: on hadOrphans=false the
// same slice value is handed back; on true, a deep copy is returned with
// the offending blocks removed in place.
func ScanStripAll(messages []Message) ScanResult {
	known := knownToolUseIDs(messages)
	orphans := orphanIDs(messages, known)

	if len(orphans) == 0 {
		return ScanResult{Messages: messages, HadOrphans: false}
	}

	drop := make(map[string]struct{}, len(orphans))
	for _, id := range orphans {
		drop[id] = struct{}{}
	}

	cleaned := Clone(messages)
	for i := range cleaned {
		if cleaned[i].Content == nil {
			continue
		}
		cleaned[i].Content = filterContent(cleaned[i].Content, func(b ContentBlock) bool {
			_, isOrphan := drop[b.ToolUseID]
			return b.Type == BlockToolResult && isOrphan
		})
	}

	return ScanResult{Messages: cleaned, RemovedIDs: orphans, HadOrphans: true}
}

// TargetedRemove drops every tool_result block whose tool_use_id equals id.
// Used only for the single reactive repair after an upstream 400 names a
// specific dangling identifier (spec §4.A, §4.D S5).
func TargetedRemove(messages []Message, id string) []Message {
	cleaned := Clone(messages)
	for i := range cleaned {
		if cleaned[i].Content == nil {
			continue
		}
		cleaned[i].Content = filterContent(cleaned[i].Content, func(b ContentBlock) bool {
			return b.Type == BlockToolResult && b.ToolUseID == id
		})
	}
	return cleaned
}

// knownToolUseIDs collects V: every use-id declared by a tool_use block,
// in any message, regardless of role.
func knownToolUseIDs(messages []Message) map[string]struct{} {
	known := make(map[string]struct{})
	for _, m := range messages {
		for _, b := range m.Content {
			if b.Type == BlockToolUse && b.ID != "" {
				known[b.ID] = struct{}{}
			}
		}
	}
	return known
}

// orphanIDs collects O: every tool_use_id referenced by a tool_result that
// isn't in known, in first-seen order (deterministic, duplicate-free).
func orphanIDs(messages []Message, known map[string]struct{}) []string {
	seen := make(map[string]struct{})
	var orphans []string
	for _, m := range messages {
		for _, b := range m.Content {
			if b.Type != BlockToolResult {
				continue
			}
			if _, ok := known[b.ToolUseID]; ok {
				continue
			}
			if _, dup := seen[b.ToolUseID]; dup {
				continue
			}
			seen[b.ToolUseID] = struct{}{}
			orphans = append(orphans, b.ToolUseID)
		}
	}
	return orphans
}

// filterContent keeps every block for which drop returns false. An empty
// or now-empty content slice is returned as an empty (non-nil) slice, never
// nil — the message itself is always retained (spec §4.A edge cases).
func filterContent(content []ContentBlock, drop func(ContentBlock) bool) []ContentBlock {
	out := make([]ContentBlock, 0, len(content))
	for _, b := range content {
		if drop(b) {
			continue
		}
		out = append(out, b)
	}
	return out
}
