// Package retry implements the request orchestrator (distilled spec
// component D): proactive conversation cleanup, dispatch, upstream error
// classification, and the bounded overload / single orphan-repair / pass-
// through retry branches. Grounded on the teacher's internal/relay.Relay.Handle,
// generalized from its per-account scheduler loop down to a single-upstream
// pipeline and restructured around the classify/conversation/identity
// packages instead of relay's inline regexes.
package retry

import "time"

// Outcome classifies how Execute's pipeline concluded, for caller-side
// logging and metrics — never exposed to the client.
type Outcome int

const (
	// OutcomeSuccess is a clean first dispatch: no proactive removals, no
	// retries of any kind (spec §4.D outcome labeling).
	OutcomeSuccess Outcome = iota
	// OutcomeProactiveSuccess is a 2xx on the first dispatch that only
	// succeeded because S0 stripped an orphan before it went out (spec §8
	// scenario 1: proactive cleanup only, retryCount stays 0).
	OutcomeProactiveSuccess
	// OutcomeRetrySuccess is a 2xx reached only after at least one overload
	// retry or the single orphan-repair retry (spec §8 scenarios 2 and 3).
	OutcomeRetrySuccess
	OutcomeWarmupShortCircuit
	OutcomeOverloadExhausted
	OutcomeOrphanRepaired
	OutcomePassthroughError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeProactiveSuccess:
		return "proactive_success"
	case OutcomeRetrySuccess:
		return "retry_success"
	case OutcomeWarmupShortCircuit:
		return "warmup_short_circuit"
	case OutcomeOverloadExhausted:
		return "overload_exhausted"
	case OutcomeOrphanRepaired:
		return "orphan_repaired"
	case OutcomePassthroughError:
		return "passthrough_error"
	default:
		return "unknown"
	}
}

// Metadata records what the pipeline actually did for one request. The
// orchestrator never persists this itself (spec: core stays stateless); the
// outer server hands it to the audit sink after Execute returns.
type Metadata struct {
	Model                 string
	IsCLI                 bool
	IdentityRuleMatched    bool
	ProactiveRemovedIDs    []string
	OverloadRetryCount     int
	OrphanRepairAttempted  bool
	OrphanRepairRemovedIDs []string
	FinalStatus            int
	Outcome                Outcome
	Elapsed                time.Duration
}
