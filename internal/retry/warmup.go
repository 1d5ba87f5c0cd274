package retry

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// IsWarmupRequest recognizes the CLI's idle-connection warmup ping (SPEC_FULL
// §12 supplemental feature, grounded on the teacher's identity.IsWarmupRequest):
// a single user message carrying one empty text block and max_tokens of 1.
// Real conversations never look like this, so it's safe to short-circuit
// before touching the network at all.
func IsWarmupRequest(body map[string]interface{}) bool {
	messages, ok := body["messages"].([]interface{})
	if !ok || len(messages) != 1 {
		return false
	}
	msg, ok := messages[0].(map[string]interface{})
	if !ok || msg["role"] != "user" {
		return false
	}
	content, ok := msg["content"].([]interface{})
	if !ok || len(content) != 1 {
		return false
	}
	block, ok := content[0].(map[string]interface{})
	if !ok || block["type"] != "text" {
		return false
	}
	if text, _ := block["text"].(string); text != "" {
		return false
	}
	maxTokens, ok := body["max_tokens"].(float64)
	return ok && maxTokens == 1
}

// WarmupResponse synthesizes the minimal SSE event sequence a real warmup
// round trip would produce, so the orchestrator never spends upstream quota
// or latency on a ping (SPEC_FULL §12).
func WarmupResponse(model string) *http.Response {
	events := warmupEvents(model)
	body := io.NopCloser(bytes.NewReader([]byte(events)))
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
		Body:       body,
	}
}

func warmupEvents(model string) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "event: message_start\ndata: {\"type\":\"message_start\",\"message\":{\"id\":\"msg_warmup\",\"type\":\"message\",\"role\":\"assistant\",\"model\":%q,\"content\":[],\"usage\":{\"input_tokens\":0,\"output_tokens\":0}}}\n\n", model)
	b.WriteString("event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"text\",\"text\":\"\"}}\n\n")
	b.WriteString("event: content_block_stop\ndata: {\"type\":\"content_block_stop\",\"index\":0}\n\n")
	b.WriteString("event: message_delta\ndata: {\"type\":\"message_delta\",\"delta\":{\"stop_reason\":\"end_turn\"},\"usage\":{\"output_tokens\":0}}\n\n")
	b.WriteString("event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
	return b.String()
}
