package events

import (
	"fmt"

	"github.com/shapegate/ccproxy/internal/retry"
)

// FromMetadata converts one orchestrator outcome into the Event this bus
// publishes, so the admin log stream and request_audit agree on what
// happened without the orchestrator itself depending on events or audit.
func FromMetadata(meta retry.Metadata) Event {
	e := Event{Type: EventRequest, Model: meta.Model, Message: meta.Outcome.String()}
	switch meta.Outcome {
	case retry.OutcomeWarmupShortCircuit:
		e.Type = EventWarmup
	case retry.OutcomeOrphanRepaired:
		e.Type = EventOrphanRepair
		e.Message = fmt.Sprintf("repaired %d orphaned tool_result block(s)", len(meta.OrphanRepairRemovedIDs))
	case retry.OutcomeOverloadExhausted:
		e.Type = EventOverloadRetry
		e.Message = fmt.Sprintf("exhausted after %d overload retries", meta.OverloadRetryCount)
	default:
		if meta.OverloadRetryCount > 0 {
			e.Type = EventOverloadRetry
			e.Message = fmt.Sprintf("succeeded after %d overload retries", meta.OverloadRetryCount)
		}
	}
	return e
}
