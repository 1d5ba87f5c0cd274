package classify

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func cloneBody(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func TestClassifyOverload529(t *testing.T) {
	c := Classify(529, http.Header{}, cloneBody(`{"error":{"message":"Overloaded"}}`))
	if c.Kind != Overload {
		t.Fatalf("expected Overload, got %v", c.Kind)
	}
}

func TestClassifyOverloadChinesePhrase(t *testing.T) {
	c := Classify(503, http.Header{}, cloneBody(`{"error":{"message":"负载已经达到上限，请稍后再试"}}`))
	if c.Kind != Overload {
		t.Fatalf("expected Overload for Chinese load-limit phrase, got %v", c.Kind)
	}
}

func TestClassifyOverloadRequiresStatusInSet(t *testing.T) {
	c := Classify(400, http.Header{}, cloneBody(`{"error":{"message":"overloaded"}}`))
	if c.Kind == Overload {
		t.Fatalf("overload phrase on status 400 must not classify as Overload")
	}
}

func TestClassifyOrphanPrimaryPattern(t *testing.T) {
	body := `{"error":{"message":"unexpected ` + "`tool_use_id`" + ` found in ` + "`tool_result`" + ` blocks: toolu_abc123"}}`
	c := Classify(400, http.Header{}, cloneBody(body))
	if c.Kind != Orphan {
		t.Fatalf("expected Orphan, got %v", c.Kind)
	}
	if len(c.IDs) != 1 || c.IDs[0] != "toolu_abc123" {
		t.Fatalf("expected ids=[toolu_abc123], got %v", c.IDs)
	}
}

func TestClassifyOrphanSecondaryPattern(t *testing.T) {
	body := `{"error":{"message":"tool result's tool id(call_xyz) not found"}}`
	c := Classify(400, http.Header{}, cloneBody(body))
	if c.Kind != Orphan {
		t.Fatalf("expected Orphan, got %v", c.Kind)
	}
	if len(c.IDs) != 1 || c.IDs[0] != "call_xyz" {
		t.Fatalf("expected ids=[call_xyz], got %v", c.IDs)
	}
}

func TestClassify400WithoutPatternIsOther(t *testing.T) {
	c := Classify(400, http.Header{}, cloneBody(`{"error":{"message":"missing required field model"}}`))
	if c.Kind != Other {
		t.Fatalf("expected Other, got %v", c.Kind)
	}
}

func TestClassifyMalformedBodyIsOther(t *testing.T) {
	c := Classify(400, http.Header{}, cloneBody(`not json at all`))
	if c.Kind != Other {
		t.Fatalf("expected Other for unparseable body, got %v", c.Kind)
	}
}

func TestClassifyBlockedOn403BanSignal(t *testing.T) {
	c := Classify(403, http.Header{}, cloneBody(`{"error":{"message":"This organization has been disabled."}}`))
	if c.Kind != Blocked {
		t.Fatalf("expected Blocked, got %v", c.Kind)
	}
}

func TestClassifyOther5xxWithoutOverloadPhrase(t *testing.T) {
	c := Classify(500, http.Header{}, cloneBody(`{"error":{"message":"internal server error"}}`))
	if c.Kind != Other {
		t.Fatalf("expected Other, got %v", c.Kind)
	}
}

func TestClassifyTopLevelMessageField(t *testing.T) {
	c := Classify(529, http.Header{}, cloneBody(`{"message":"rate limit exceeded"}`))
	if c.Kind != Overload {
		t.Fatalf("expected Overload via top-level message field, got %v", c.Kind)
	}
}
