package conversation

import "testing"

func toolUse(id string) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Raw: map[string]interface{}{"type": "tool_use", "id": id}}
}

func toolResult(id string) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: id, Raw: map[string]interface{}{"type": "tool_result", "tool_use_id": id}}
}

func TestScanStripAllRemovesOnlyOrphans(t *testing.T) {
	messages := []Message{
		{Role: RoleAssistant, Content: []ContentBlock{toolUse("toolu_A")}, Raw: map[string]interface{}{"role": "assistant"}},
		{Role: RoleUser, Content: []ContentBlock{toolResult("toolu_A"), toolResult("toolu_GHOST")}, Raw: map[string]interface{}{"role": "user"}},
	}

	result := ScanStripAll(messages)
	if !result.HadOrphans {
		t.Fatalf("expected hadOrphans=true")
	}
	if len(result.RemovedIDs) != 1 || result.RemovedIDs[0] != "toolu_GHOST" {
		t.Fatalf("expected removedIds=[toolu_GHOST], got %v", result.RemovedIDs)
	}
	second := result.Messages[1].Content
	if len(second) != 1 || second[0].ToolUseID != "toolu_A" {
		t.Fatalf("expected surviving content to be [toolu_A], got %+v", second)
	}
	// original input is untouched
	if len(messages[1].Content) != 2 {
		t.Fatalf("input messages were mutated")
	}
}

func TestScanStripAllNoOrphansReturnsInputUnchanged(t *testing.T) {
	messages := []Message{
		{Role: RoleAssistant, Content: []ContentBlock{toolUse("toolu_A")}},
		{Role: RoleUser, Content: []ContentBlock{toolResult("toolu_A")}},
	}

	result := ScanStripAll(messages)
	if result.HadOrphans {
		t.Fatalf("expected hadOrphans=false")
	}
	if result.RemovedIDs != nil {
		t.Fatalf("expected no removed ids, got %v", result.RemovedIDs)
	}
	// Same underlying data, structurally equal.
	if len(result.Messages) != len(messages) {
		t.Fatalf("message count changed")
	}
}

func TestScanStripAllRecognizesToolUseOnAnyRole(t *testing.T) {
	// A tool_use declared on a mislabeled "user" turn still counts.
	messages := []Message{
		{Role: RoleUser, Content: []ContentBlock{toolUse("toolu_X")}},
		{Role: RoleAssistant, Content: []ContentBlock{toolResult("toolu_X")}},
	}

	result := ScanStripAll(messages)
	if result.HadOrphans {
		t.Fatalf("expected no orphans when tool_use appears on any role, got removed=%v", result.RemovedIDs)
	}
}

func TestScanStripAllEmptyContentRemainsEmpty(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: []ContentBlock{}},
		{Role: RoleUser, Content: []ContentBlock{toolResult("toolu_GHOST")}},
	}

	result := ScanStripAll(messages)
	if result.Messages[0].Content == nil || len(result.Messages[0].Content) != 0 {
		t.Fatalf("expected first message's empty content to remain an empty slice, got %+v", result.Messages[0].Content)
	}
	if len(result.Messages) != 2 {
		t.Fatalf("message count must never change, got %d", len(result.Messages))
	}
}

func TestScanStripAllMessageBecomesEmptyButIsRetained(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: []ContentBlock{toolResult("toolu_GHOST")}},
	}
	result := ScanStripAll(messages)
	if len(result.Messages) != 1 {
		t.Fatalf("message whose content becomes empty must still be retained")
	}
	if len(result.Messages[0].Content) != 0 {
		t.Fatalf("expected empty content, got %+v", result.Messages[0].Content)
	}
}

func TestScanStripAllIDsAreByteExact(t *testing.T) {
	messages := []Message{
		{Role: RoleAssistant, Content: []ContentBlock{toolUse("toolu_ABC")}},
		{Role: RoleUser, Content: []ContentBlock{toolResult("TOOLU_ABC")}},
	}
	result := ScanStripAll(messages)
	if !result.HadOrphans {
		t.Fatalf("expected case-sensitive mismatch to be treated as orphan")
	}
	if result.RemovedIDs[0] != "TOOLU_ABC" {
		t.Fatalf("expected exact-case id in removedIds, got %v", result.RemovedIDs)
	}
}

func TestTargetedRemoveOnlyRemovesNamedID(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: []ContentBlock{toolResult("toolu_1"), toolResult("toolu_2")}},
	}
	cleaned := TargetedRemove(messages, "toolu_1")
	if len(cleaned[0].Content) != 1 || cleaned[0].Content[0].ToolUseID != "toolu_2" {
		t.Fatalf("expected only toolu_2 to remain, got %+v", cleaned[0].Content)
	}
	if len(messages[0].Content) != 2 {
		t.Fatalf("input must not be mutated")
	}
}

func TestScanStripAllDeduplicatesOrphanIDs(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: []ContentBlock{toolResult("toolu_GHOST"), toolResult("toolu_GHOST")}},
	}
	result := ScanStripAll(messages)
	if len(result.RemovedIDs) != 1 {
		t.Fatalf("expected deduplicated removedIds, got %v", result.RemovedIDs)
	}
	if len(result.Messages[0].Content) != 0 {
		t.Fatalf("expected both orphan blocks removed, got %+v", result.Messages[0].Content)
	}
}
