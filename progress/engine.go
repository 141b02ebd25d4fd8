package progress

import (
	"bytes"
	"encoding/json"
)

type Action string

const (
	ActionProceed Action = "proceed"
	ActionRetry   Action = "retry"
	ActionAmend   Action = "amend"
	ActionAbort   Action = "abort"
)

// PlanDelta is the decision document attached to a progress event.
type PlanDelta struct {
	Decision    Decision        `json:"decision"`
	AmendedPlan json.RawMessage `json:"amended_plan,omitempty"`
	Evidence    *Evidence       `json:"evidence,omitempty"`
}

// Evidence carries retry bookkeeping owned by the caller's workflow store.
type Evidence struct {
	RetryCount *int `json:"retry_count,omitempty"`
	MaxRetries *int `json:"max_retries,omitempty"`
}

// HasAmendedPlan reports whether a non-empty amended plan is attached.
func (p PlanDelta) HasAmendedPlan() bool {
	switch string(bytes.TrimSpace(p.AmendedPlan)) {
	case "", "null", "false", `""`, "0":
		return false
	default:
		return true
	}
}

// RetriesExhausted is true when both counters are present and the retry
// count has reached the maximum.
func (e *Evidence) RetriesExhausted() bool {
	if e == nil || e.RetryCount == nil || e.MaxRetries == nil {
		return false
	}
	return *e.RetryCount >= *e.MaxRetries
}

// Result is the workflow action derived from a PlanDelta. ShouldAbort takes
// precedence over the other flags.
type Result struct {
	ShouldRetry    bool `json:"should_retry"`
	UseAmendedPlan bool `json:"use_amended_plan"`
	ShouldAbort    bool `json:"should_abort"`
}

// Action collapses the flags into a single instruction. Abort wins over
// everything else.
func (r Result) Action() Action {
	switch {
	case r.ShouldAbort:
		return ActionAbort
	case r.UseAmendedPlan:
		return ActionAmend
	case r.ShouldRetry:
		return ActionRetry
	default:
		return ActionProceed
	}
}

// Evaluate applies the decision table to delta. It is pure: retry counts
// travel with the delta rather than living in the engine.
//
//	proceed  -> nothing
//	retry    -> retry
//	amended  -> retry, use the amended plan when one is attached
//	abort    -> abort
//
// Exhausted retries force an abort. The retry flag is left as the table set
// it, so callers must check ShouldAbort (or use Action) first.
func Evaluate(delta PlanDelta) (Result, error) {
	if !delta.Decision.Valid() {
		return Result{}, decisionError("decision is required")
	}

	var result Result
	switch delta.Decision {
	case DecisionRetry:
		result.ShouldRetry = true
	case DecisionAmended:
		result.ShouldRetry = true
		result.UseAmendedPlan = delta.HasAmendedPlan()
	case DecisionAbort:
		result.ShouldAbort = true
	}

	if delta.Evidence.RetriesExhausted() {
		result.ShouldAbort = true
	}
	return result, nil
}
