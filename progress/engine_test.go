package progress

import (
	"encoding/json"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-relay/core"
)

func intPtr(v int) *int { return &v }

func TestEvaluate_DecisionTable(t *testing.T) {
	cases := []struct {
		name  string
		delta PlanDelta
		want  Result
		act   Action
	}{
		{name: "proceed", delta: PlanDelta{Decision: DecisionProceed}, want: Result{}, act: ActionProceed},
		{name: "retry", delta: PlanDelta{Decision: DecisionRetry}, want: Result{ShouldRetry: true}, act: ActionRetry},
		{name: "amended without plan", delta: PlanDelta{Decision: DecisionAmended}, want: Result{ShouldRetry: true}, act: ActionRetry},
		{
			name:  "amended with plan",
			delta: PlanDelta{Decision: DecisionAmended, AmendedPlan: json.RawMessage(`{"title":"v2","steps":[]}`)},
			want:  Result{ShouldRetry: true, UseAmendedPlan: true},
			act:   ActionAmend,
		},
		{
			name:  "amended with null plan",
			delta: PlanDelta{Decision: DecisionAmended, AmendedPlan: json.RawMessage(`null`)},
			want:  Result{ShouldRetry: true},
			act:   ActionRetry,
		},
		{name: "abort", delta: PlanDelta{Decision: DecisionAbort}, want: Result{ShouldAbort: true}, act: ActionAbort},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(tc.delta)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
			if got.Action() != tc.act {
				t.Fatalf("expected action %q, got %q", tc.act, got.Action())
			}
		})
	}
}

func TestEvaluate_RetryExhaustionForcesAbort(t *testing.T) {
	got, err := Evaluate(PlanDelta{
		Decision: DecisionRetry,
		Evidence: &Evidence{RetryCount: intPtr(3), MaxRetries: intPtr(3)},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !got.ShouldAbort {
		t.Fatalf("expected exhausted retries to abort")
	}
	if !got.ShouldRetry {
		t.Fatalf("expected retry flag to be left set by the override")
	}
	if got.Action() != ActionAbort {
		t.Fatalf("expected abort action, got %q", got.Action())
	}

	got, err = Evaluate(PlanDelta{
		Decision: DecisionRetry,
		Evidence: &Evidence{RetryCount: intPtr(2), MaxRetries: intPtr(3)},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got.ShouldAbort || !got.ShouldRetry {
		t.Fatalf("expected retry below the limit, got %+v", got)
	}

	got, err = Evaluate(PlanDelta{
		Decision: DecisionProceed,
		Evidence: &Evidence{RetryCount: intPtr(5)},
	})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got.ShouldAbort {
		t.Fatalf("expected override to require both counters")
	}
}

func TestEvaluate_AbortTakesPrecedenceInAction(t *testing.T) {
	for _, decision := range []Decision{DecisionProceed, DecisionRetry, DecisionAmended, DecisionAbort} {
		for _, count := range []int{0, 1, 3, 9} {
			got, err := Evaluate(PlanDelta{
				Decision:    decision,
				AmendedPlan: json.RawMessage(`{"title":"x"}`),
				Evidence:    &Evidence{RetryCount: intPtr(count), MaxRetries: intPtr(3)},
			})
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got.ShouldAbort && got.Action() != ActionAbort {
				t.Fatalf("decision %s with retry_count %d: expected abort action, got %q", decision, count, got.Action())
			}
		}
	}
}

func TestEvaluate_RejectsMissingDecision(t *testing.T) {
	_, err := Evaluate(PlanDelta{})
	assertInvalidDecision(t, err)
}

func TestParseDecision(t *testing.T) {
	for _, value := range AllowedDecisions {
		decision, err := ParseDecision(value)
		if err != nil {
			t.Fatalf("parse %q: %v", value, err)
		}
		if decision.String() != value {
			t.Fatalf("expected round trip for %q, got %q", value, decision.String())
		}
	}
	for _, value := range []string{"", "unknown", "Proceed", "amend"} {
		_, err := ParseDecision(value)
		assertInvalidDecision(t, err)
	}
}

func TestParsePlanDelta(t *testing.T) {
	delta, err := ParsePlanDelta([]byte(`{
		"decision": "retry",
		"reason": "timeout",
		"evidence": {"retry_count": 3, "max_retries": 3}
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if delta.Decision != DecisionRetry {
		t.Fatalf("expected retry decision, got %s", delta.Decision)
	}
	if !delta.Evidence.RetriesExhausted() {
		t.Fatalf("expected evidence to be decoded")
	}

	for _, raw := range []string{
		`{}`,
		`{"decision": null}`,
		`{"decision": "unknown"}`,
		`{"decision": 1}`,
		`{"decision": "retry", "evidence": {"retry_count": -1}}`,
		`{"decision": "retry", "evidence": {"retry_count": 1.5}}`,
		`"proceed"`,
	} {
		_, err := ParsePlanDelta([]byte(raw))
		assertInvalidDecision(t, err)
	}

	_, err = ParsePlanDelta([]byte(`{"decision":`))
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.RelayErrorBadInput {
		t.Fatalf("expected bad input for malformed json, got %v", err)
	}
}

func TestDecodePlanDelta_FromDecodedPayload(t *testing.T) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(`{"plan_delta":{"decision":"amended","amended_plan":{"title":"v2","steps":[]}}}`), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	delta, err := DecodePlanDelta(payload["plan_delta"])
	if err != nil {
		t.Fatalf("decode plan delta: %v", err)
	}
	if !delta.HasAmendedPlan() {
		t.Fatalf("expected amended plan to be kept")
	}
	result, err := Evaluate(delta)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !result.UseAmendedPlan {
		t.Fatalf("expected amended plan to be used")
	}
}

func assertInvalidDecision(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %v", rich.Category)
	}
	if rich.TextCode != core.RelayErrorInvalidDecision {
		t.Fatalf("expected %s, got %s", core.RelayErrorInvalidDecision, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rich.Code)
	}
}
