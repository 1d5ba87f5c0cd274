package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIsEventStreamMatchesPrefix(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Content-Type": []string{"text/event-stream; charset=utf-8"}}}
	if !IsEventStream(resp) {
		t.Fatalf("expected event-stream content-type to match")
	}
}

func TestIsEventStreamRejectsOther(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Content-Type": []string{"application/json"}}}
	if IsEventStream(resp) {
		t.Fatalf("expected application/json to not match")
	}
}

func TestIsStreamingMatchesChunkedTransferEncoding(t *testing.T) {
	resp := &http.Response{
		Header:           http.Header{"Content-Type": []string{"application/json"}},
		TransferEncoding: []string{"chunked"},
	}
	if !IsStreaming(resp) {
		t.Fatalf("expected chunked transfer-encoding to classify as streaming")
	}
}

func TestIsStreamingRejectsPlainJSON(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Content-Type": []string{"application/json"}}}
	if IsStreaming(resp) {
		t.Fatalf("expected plain application/json to not classify as streaming")
	}
}

func TestPipePreservesBytesExactly(t *testing.T) {
	payload := "event: message\r\ndata: {\"delta\":\"hi\"}\r\n\r\ndata: [DONE]\n\n"
	rec := httptest.NewRecorder()

	completed, err := Pipe(rec, strings.NewReader(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !completed {
		t.Fatalf("expected completed pipe")
	}
	if rec.Body.String() != payload {
		t.Fatalf("byte mismatch:\n got: %q\nwant: %q", rec.Body.String(), payload)
	}
}

func TestPipeFlushesIncrementally(t *testing.T) {
	rec := httptest.NewRecorder()
	_, err := Pipe(rec, strings.NewReader("a small chunk"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rec.Flushed {
		t.Fatalf("expected the response writer to have been flushed")
	}
}
