package identity

import "testing"

func TestMatchIsCaseInsensitiveSubstring(t *testing.T) {
	rule, ok := Match("Claude-Opus-4-20250514")
	if !ok || rule.Substring != "opus" {
		t.Fatalf("expected opus rule match, got %+v ok=%v", rule, ok)
	}
}

func TestMatchFirstEntryWins(t *testing.T) {
	// No real model name contains two table substrings; a synthetic one that
	// does must resolve to the earlier entry.
	rule, ok := Match(Table[0].Substring + "-" + Table[1].Substring)
	if !ok || rule.Substring != Table[0].Substring {
		t.Fatalf("expected first entry %q to win, got %+v ok=%v", Table[0].Substring, rule, ok)
	}
	for i := 1; i < len(Table); i++ {
		if Table[i-1].Substring == Table[i].Substring {
			t.Fatalf("duplicate substring %q breaks first-match-wins", Table[i].Substring)
		}
	}
}

func TestMatchReturnsFalseForUnknownModel(t *testing.T) {
	if _, ok := Match("gpt-4o-mini"); ok {
		t.Fatalf("expected no match for an unrelated model name")
	}
}
