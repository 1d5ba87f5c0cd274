// Package classify inspects a non-2xx upstream response and sorts it into
// the handful of shapes the Retry Orchestrator knows how to react to (spec
// §4.B). It never throws: any read or parse failure degrades to Other.
package classify

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/andybalholm/brotli"
	kzip "github.com/klauspost/compress/gzip"
)

// Kind is the classification assigned to a non-2xx upstream response.
type Kind int

const (
	// Other covers every status/body combination not recognized below,
	// including 400s without a recognized orphan pattern.
	Other Kind = iota
	// Overload means the upstream is shedding load; the orchestrator backs
	// off and retries the same request.
	Overload
	// Orphan means upstream rejected the request because it named a
	// specific dangling tool_use_id; ids holds every capture, in the order
	// the patterns matched.
	Orphan
	// Blocked is a supplemental classification (SPEC_FULL §12): a 403 body
	// carrying upstream's permanent-ban signal rather than a transient
	// rejection. The retry state machine does not branch on it (spec.md
	// names no 403 retry path) and retry.Metadata does not record it; it is
	// visible only to direct callers of Classify.
	Blocked
)

func (k Kind) String() string {
	switch k {
	case Overload:
		return "overload"
	case Orphan:
		return "orphan"
	case Blocked:
		return "blocked"
	default:
		return "other"
	}
}

// Classification is the result of inspecting one non-2xx response.
type Classification struct {
	Kind Kind
	// IDs holds the orphaned tool_use_id(s), in match order, when Kind is
	// Orphan. Always non-empty in that case.
	IDs []string
}

// overloadStatuses is the canonical set per spec §9 Open Question (b): 500,
// 503, 529 are always matched; 502 is included too since the spec allows
// (but does not require) it and upstream aggregators do emit 502 under load.
var overloadStatuses = map[int]bool{
	500: true,
	502: true,
	503: true,
	529: true,
}

// overloadPhrases are matched case-insensitively against the extracted
// error message. The first entry is the Chinese "load limit reached"
// phrase some upstream aggregators return verbatim.
var overloadPhrases = []string{
	"负载已经达到上限",
	"overload",
	"overloaded",
	"rate limit",
	"capacity",
	"too many requests",
}

// Orphan-detection patterns (spec §4.B). \w+ is restricted to ASCII word
// characters by using Go's RE2 engine without the Unicode flag — Go's \w
// already defaults to ASCII-only word characters, matching spec §9's
// "Regex pitfalls" note for implementations whose regex engine defaults to
// Unicode \w.
var (
	orphanPatternPrimary   = regexp.MustCompile("unexpected `tool_use_id` found in `tool_result` blocks: (toolu_\\w+)")
	orphanPatternSecondary = regexp.MustCompile(`tool result's tool id\(([^)]+)\) not found`)
)

// banSignalPattern recognizes upstream 403 bodies that mean a credential is
// permanently blocked rather than transiently rejected (SPEC_FULL §12,
// grounded on the teacher's banSignalPattern in internal/relay/relay.go).
var banSignalPattern = regexp.MustCompile(`(?i)(organization has been disabled|account has been disabled|only authorized for use with claude code)`)

// Classify inspects a non-2xx response. body must be a clone of the
// response body (spec §4.B: "the primary body remains consumable by
// downstream code paths") — Classify fully consumes and closes it.
func Classify(statusCode int, header http.Header, body io.ReadCloser) Classification {
	defer body.Close()

	raw, err := io.ReadAll(io.LimitReader(decompress(header, body), 1<<20))
	if err != nil {
		return Classification{Kind: Other}
	}

	message := extractMessage(raw)

	switch {
	case overloadStatuses[statusCode] && isOverloadMessage(message):
		return Classification{Kind: Overload}
	case statusCode == http.StatusBadRequest:
		if ids := extractOrphanIDs(message); len(ids) > 0 {
			return Classification{Kind: Orphan, IDs: ids}
		}
	case statusCode == http.StatusForbidden && banSignalPattern.MatchString(string(raw)):
		return Classification{Kind: Blocked}
	}
	return Classification{Kind: Other}
}

// decompress wraps body in a decoder for content-encoding gzip/br so the
// message extraction below sees plaintext JSON. The dispatcher sets the
// Accept-Encoding the Identity Normalizer's protocol-critical headers
// advertise (gzip, br, per step 4), so upstream may legitimately answer
// compressed even on an error path.
func decompress(header http.Header, body io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(header.Get("content-encoding"))) {
	case "gzip":
		raw, err := io.ReadAll(body)
		if err != nil {
			return bytes.NewReader(raw)
		}
		if r, err := kzip.NewReader(bytes.NewReader(raw)); err == nil {
			return r
		}
		if r, err := gzip.NewReader(bytes.NewReader(raw)); err == nil {
			return r
		}
		return bytes.NewReader(raw)
	case "br":
		return brotli.NewReader(body)
	}
	return body
}

// extractMessage pulls `.error.message` or `.message` from a JSON body; on
// parse failure the raw bytes themselves are the "message" (spec §4.B).
func extractMessage(raw []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(raw), &parsed); err == nil {
		if parsed.Error.Message != "" {
			return parsed.Error.Message
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return string(raw)
}

func isOverloadMessage(message string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	for _, phrase := range overloadPhrases {
		if strings.Contains(normalized, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}

// extractOrphanIDs applies P1 then P2, in order, returning every capture
// across both in match order (spec §4.B).
func extractOrphanIDs(message string) []string {
	var ids []string
	for _, m := range orphanPatternPrimary.FindAllStringSubmatch(message, -1) {
		ids = append(ids, m[1])
	}
	for _, m := range orphanPatternSecondary.FindAllStringSubmatch(message, -1) {
		ids = append(ids, m[1])
	}
	return ids
}
