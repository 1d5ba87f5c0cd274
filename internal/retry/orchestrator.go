package retry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shapegate/ccproxy/internal/classify"
	"github.com/shapegate/ccproxy/internal/conversation"
	"github.com/shapegate/ccproxy/internal/dispatch"
	"github.com/shapegate/ccproxy/internal/identity"
	"github.com/shapegate/ccproxy/internal/stream"
)

// maxClassifyBodyBytes bounds how much of an error body classify reads; it
// never touches a success body at all.
const maxClassifyBodyBytes = 1 << 20

// Config parameterizes one Orchestrator.
type Config struct {
	Dispatcher         *dispatch.Dispatcher
	Identity           identity.Config
	UpstreamURL        string
	UpstreamHost       string
	MaxOverloadRetries int
	OverloadBackoff    func(attempt int) time.Duration
	EnableWarmup       bool
}

// Orchestrator runs one request through proactive cleanup, identity
// normalization, dispatch, and the retry state machine.
type Orchestrator struct {
	cfg Config
}

// New builds an Orchestrator. A nil OverloadBackoff falls back to a fixed
// 250ms pause between overload retries.
func New(cfg Config) *Orchestrator {
	if cfg.OverloadBackoff == nil {
		cfg.OverloadBackoff = func(attempt int) time.Duration { return 250 * time.Millisecond }
	}
	if cfg.MaxOverloadRetries < 0 {
		cfg.MaxOverloadRetries = 0
	}
	return &Orchestrator{cfg: cfg}
}

// Execute runs the full pipeline against body, a decoded Messages API
// request object, and returns the *http.Response to forward to the client
// (success or final pass-through error) along with bookkeeping metadata.
// The caller owns resp.Body and must close it.
func (o *Orchestrator) Execute(ctx context.Context, header http.Header, body map[string]interface{}) (*http.Response, Metadata, error) {
	start := time.Now()
	meta := Metadata{}
	if model, ok := body["model"].(string); ok {
		meta.Model = model
	}

	// Pre-S0: warmup short-circuit.
	if o.cfg.EnableWarmup && IsWarmupRequest(body) {
		meta.Outcome = OutcomeWarmupShortCircuit
		meta.FinalStatus = http.StatusOK
		meta.Elapsed = time.Since(start)
		return WarmupResponse(meta.Model), meta, nil
	}

	// S0: proactive conversation cleanup, then identity normalization.
	removed := proactiveClean(body)
	meta.ProactiveRemovedIDs = removed

	idResult, err := identity.Normalize(o.cfg.UpstreamHost, header, body, o.cfg.Identity)
	if err != nil {
		return nil, meta, fmt.Errorf("normalize identity: %w", err)
	}
	meta.IdentityRuleMatched = idResult.Applied
	meta.IsCLI = idResult.IsCLI

	// S1: dispatch.
	resp, err := o.dispatch(ctx, header, body)
	if err != nil {
		meta.Elapsed = time.Since(start)
		return nil, meta, err
	}

	// S3: streaming gate. A streaming-shaped response is never read by the
	// core except to classify a 400 for orphan-detection (spec §4.E); every
	// other status on a streaming-shaped response passes through untouched.
	if stream.IsStreaming(resp) && resp.StatusCode != http.StatusBadRequest {
		meta.Outcome = firstAttemptOutcome(meta)
		meta.FinalStatus = resp.StatusCode
		meta.Elapsed = time.Since(start)
		return resp, meta, nil
	}

	// S4: success.
	if resp.StatusCode/100 == 2 {
		meta.Outcome = firstAttemptOutcome(meta)
		meta.FinalStatus = resp.StatusCode
		meta.Elapsed = time.Since(start)
		return resp, meta, nil
	}

	// S2: classify the error.
	errBody, class := readAndClassify(resp)
	resp.Body.Close()

	switch class.Kind {
	case classify.Overload:
		resp, meta = o.retryOverload(ctx, header, body, &meta)
	case classify.Orphan:
		resp, meta = o.retryOrphan(ctx, header, body, class.IDs, &meta, errBody)
	default:
		resp = rebuildResponse(resp, errBody)
		meta.Outcome = OutcomePassthroughError
	}

	meta.FinalStatus = resp.StatusCode
	meta.Elapsed = time.Since(start)
	return resp, meta, nil
}

// firstAttemptOutcome implements spec §4.D's outcome-labeling rule for a 2xx
// (or streaming) response reached without any retry: "RetrySuccess if
// retryCount > 0; else ProactiveSuccess if the proactive step had orphans;
// else Success." No retry has happened yet at S3/S4, so this only chooses
// between the latter two.
func firstAttemptOutcome(meta Metadata) Outcome {
	if len(meta.ProactiveRemovedIDs) > 0 {
		return OutcomeProactiveSuccess
	}
	return OutcomeSuccess
}

// proactiveClean runs the orphan tool-result scan over body.messages and
// writes the result back in place if anything changed.
func proactiveClean(body map[string]interface{}) []string {
	raw, ok := body["messages"].([]interface{})
	if !ok {
		return nil
	}
	messages := conversation.FromRaw(raw)
	result := conversation.ScanStripAll(messages)
	if !result.HadOrphans {
		return nil
	}
	body["messages"] = conversation.ToRaw(result.Messages)
	return result.RemovedIDs
}

// retryOverload implements S2: bounded retries of the same body against a
// 529/503/500/502-style overload error, with no body changes between
// attempts.
func (o *Orchestrator) retryOverload(ctx context.Context, header http.Header, body map[string]interface{}, meta *Metadata) (*http.Response, Metadata) {
	for attempt := 1; attempt <= o.cfg.MaxOverloadRetries; attempt++ {
		select {
		case <-ctx.Done():
			meta.Outcome = OutcomePassthroughError
			return errorResponse(http.StatusServiceUnavailable, "request canceled during overload retry"), *meta
		case <-time.After(o.cfg.OverloadBackoff(attempt)):
		}

		resp, err := o.dispatch(ctx, header, body)
		if err != nil {
			meta.OverloadRetryCount = attempt
			meta.Outcome = OutcomePassthroughError
			return errorResponse(http.StatusBadGateway, err.Error()), *meta
		}
		meta.OverloadRetryCount = attempt

		if stream.IsStreaming(resp) && resp.StatusCode != http.StatusBadRequest {
			meta.Outcome = OutcomeRetrySuccess
			return resp, *meta
		}
		if resp.StatusCode/100 == 2 {
			meta.Outcome = OutcomeRetrySuccess
			return resp, *meta
		}

		errBody, class := readAndClassify(resp)
		resp.Body.Close()

		if class.Kind == classify.Overload {
			continue
		}
		if class.Kind == classify.Orphan {
			return o.retryOrphan(ctx, header, body, class.IDs, meta, errBody)
		}
		meta.Outcome = OutcomePassthroughError
		return rebuildResponse(resp, errBody), *meta
	}

	meta.Outcome = OutcomeOverloadExhausted
	return errorResponse(http.StatusServiceUnavailable, "upstream overloaded"), *meta
}

// retryOrphan implements S5: a single retry after stripping exactly the
// tool_result ids the upstream named as orphaned. If the retry is neither
// streaming nor 2xx, the retry's own response and error body are returned;
// original (the error body of the attempt that produced ids) is not used.
func (o *Orchestrator) retryOrphan(ctx context.Context, header http.Header, body map[string]interface{}, ids []string, meta *Metadata, original []byte) (*http.Response, Metadata) {
	if meta.OrphanRepairAttempted {
		// Already repaired once this request; don't loop.
		return errorResponse(http.StatusBadGateway, "orphan repair already attempted"), *meta
	}
	meta.OrphanRepairAttempted = true

	raw, ok := body["messages"].([]interface{})
	if ok {
		messages := conversation.FromRaw(raw)
		for _, id := range ids {
			messages = conversation.TargetedRemove(messages, id)
		}
		body["messages"] = conversation.ToRaw(messages)
		meta.OrphanRepairRemovedIDs = ids
	}

	resp, err := o.dispatch(ctx, header, body)
	if err != nil {
		meta.Outcome = OutcomePassthroughError
		return errorResponse(http.StatusBadGateway, err.Error()), *meta
	}

	if stream.IsStreaming(resp) && resp.StatusCode != http.StatusBadRequest {
		meta.Outcome = OutcomeOrphanRepaired
		return resp, *meta
	}
	if resp.StatusCode/100 == 2 {
		meta.Outcome = OutcomeOrphanRepaired
		return resp, *meta
	}

	errBody, _ := readAndClassify(resp)
	resp.Body.Close()
	meta.Outcome = OutcomePassthroughError
	return rebuildResponse(resp, errBody), *meta
}

// dispatch marshals body and sends it to the upstream.
func (o *Orchestrator) dispatch(ctx context.Context, header http.Header, body map[string]interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.UpstreamURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header.Clone()

	return o.cfg.Dispatcher.Send(req)
}

func readAndClassify(resp *http.Response) ([]byte, classify.Classification) {
	limited := io.LimitReader(resp.Body, maxClassifyBodyBytes)
	data, _ := io.ReadAll(limited)
	class := classify.Classify(resp.StatusCode, resp.Header, io.NopCloser(bytes.NewReader(data)))
	return data, class
}

func rebuildResponse(resp *http.Response, body []byte) *http.Response {
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp
}

func errorResponse(status int, message string) *http.Response {
	payload, _ := json.Marshal(map[string]interface{}{
		"type": "error",
		"error": map[string]interface{}{
			"type":    "api_error",
			"message": message,
		},
	})
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(payload)),
	}
}
