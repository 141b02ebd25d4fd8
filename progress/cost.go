package progress

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BaseCost is charged once per plan execution.
const BaseCost = 2

// Weights is the per-step cost by action. Actions that run without the
// agent platform cost nothing.
var Weights = map[string]int{
	"calendar.create": 3,
	"gmail.send":      4,
	"notion.append":   1,
	"supabase.upsert": 0,
	"line.reply":      0,
}

const (
	DefaultDailyBudget  = 50
	DefaultWeeklyBudget = 200
)

// Plan is a workflow plan document. Keys without a field are kept in Extra
// and written back on marshal.
type Plan struct {
	Title string         `json:"title"`
	Steps []PlanStep     `json:"steps"`
	Extra map[string]any `json:"-"`
}

type PlanStep struct {
	ID             string         `json:"id"`
	Action         string         `json:"action"`
	Connector      string         `json:"connector,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	OnError        string         `json:"on_error,omitempty"`
	Extra          map[string]any `json:"-"`
}

var (
	planKeys     = []string{"title", "steps"}
	planStepKeys = []string{"id", "action", "connector", "payload", "idempotency_key", "on_error"}
)

func (p *Plan) UnmarshalJSON(data []byte) error {
	type plain Plan
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	extra, err := unknownKeys(data, planKeys)
	if err != nil {
		return err
	}
	decoded.Extra = extra
	*p = Plan(decoded)
	return nil
}

func (p Plan) MarshalJSON() ([]byte, error) {
	type plain Plan
	return marshalWithExtra(plain(p), p.Extra)
}

func (s *PlanStep) UnmarshalJSON(data []byte) error {
	type plain PlanStep
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	extra, err := unknownKeys(data, planStepKeys)
	if err != nil {
		return err
	}
	decoded.Extra = extra
	*s = PlanStep(decoded)
	return nil
}

func (s PlanStep) MarshalJSON() ([]byte, error) {
	type plain PlanStep
	return marshalWithExtra(plain(s), s.Extra)
}

func unknownKeys(data []byte, known []string) (map[string]any, error) {
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, key := range known {
		delete(all, key)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// marshalWithExtra encodes value and merges extra into the object. Declared
// fields win over extra keys of the same name.
func marshalWithExtra(value any, extra map[string]any) ([]byte, error) {
	encoded, err := json.Marshal(value)
	if err != nil || len(extra) == 0 {
		return encoded, err
	}
	var merged map[string]any
	if err := json.Unmarshal(encoded, &merged); err != nil {
		return nil, err
	}
	for key, item := range extra {
		if _, declared := merged[key]; !declared {
			merged[key] = item
		}
	}
	return json.Marshal(merged)
}

// DecodePlan parses a plan document, typically PlanDelta.AmendedPlan.
func DecodePlan(raw []byte) (Plan, error) {
	var plan Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return Plan{}, fmt.Errorf("progress: malformed plan: %w", err)
	}
	return plan, nil
}

// EstimatePlanCost returns the projected point cost of running plan.
func EstimatePlanCost(plan Plan) int {
	cost := BaseCost
	for _, step := range plan.Steps {
		cost += Weights[step.Action]
		switch step.Action {
		case "gmail.send":
			if recipients := recipientCount(step.Payload["to"]); recipients > 1 {
				cost += recipients - 1
			}
			if present(step.Payload["attachments"]) {
				cost += 2
			}
		case "calendar.create":
			if attendees, ok := step.Payload["attendees"].([]any); ok {
				cost += len(attendees)
			}
		}
	}
	return cost
}

type Budget struct {
	Daily  int
	Weekly int
}

func DefaultBudget() Budget {
	return Budget{Daily: DefaultDailyBudget, Weekly: DefaultWeeklyBudget}
}

type BudgetCheck struct {
	EstimatedCost  int    `json:"estimated_cost"`
	WithinBudget   bool   `json:"within_budget"`
	Recommendation string `json:"recommendation"`
}

// CheckBudget compares the plan estimate with a single execution's budget.
// Accumulated spend is not tracked here.
func CheckBudget(plan Plan, budget Budget) BudgetCheck {
	if budget.Daily <= 0 {
		budget.Daily = DefaultDailyBudget
	}
	if budget.Weekly <= 0 {
		budget.Weekly = DefaultWeeklyBudget
	}
	cost := EstimatePlanCost(plan)
	check := BudgetCheck{
		EstimatedCost: cost,
		WithinBudget:  cost <= budget.Daily && cost <= budget.Weekly,
	}
	if check.WithinBudget {
		check.Recommendation = "OK: within budget"
	} else {
		check.Recommendation = fmt.Sprintf(
			"over budget: %dpt > %dpt/day, degrade to chat notifications",
			cost, budget.Daily,
		)
	}
	return check
}

// DegradedUserPlaceholder is substituted by the workflow with the chat
// user's id.
const DegradedUserPlaceholder = "{{USER_LINE_ID}}"

// SuggestDegrade rewrites costly steps as chat notifications. Other steps,
// and any plan keys without a field, are kept as they are.
func SuggestDegrade(plan Plan) Plan {
	degraded := Plan{
		Title: plan.Title + " (Degraded)",
		Steps: make([]PlanStep, 0, len(plan.Steps)),
		Extra: plan.Extra,
	}
	for _, step := range plan.Steps {
		switch step.Action {
		case "gmail.send":
			text := fmt.Sprintf("[Notice] %s\n\n%s",
				stringField(step.Payload, "subject"),
				stringField(step.Payload, "body"),
			)
			degraded.Steps = append(degraded.Steps, notificationStep(step, text))
		case "calendar.create":
			text := fmt.Sprintf("[Calendar] %s\nStart: %s\nEnd: %s",
				stringField(step.Payload, "summary"),
				stringField(step.Payload, "start"),
				stringField(step.Payload, "end"),
			)
			degraded.Steps = append(degraded.Steps, notificationStep(step, text))
		default:
			degraded.Steps = append(degraded.Steps, step)
		}
	}
	return degraded
}

func notificationStep(step PlanStep, text string) PlanStep {
	return PlanStep{
		ID:        step.ID + "_degraded",
		Action:    "line.reply",
		Connector: "line_bot",
		Payload: map[string]any{
			"to": DegradedUserPlaceholder,
			"messages": []any{
				map[string]any{"type": "text", "text": text},
			},
		},
		IdempotencyKey: step.IdempotencyKey + "_degraded",
		OnError:        "continue",
	}
}

func recipientCount(value any) int {
	switch typed := value.(type) {
	case nil:
		return 1
	case string:
		return len(strings.Split(typed, ","))
	case []any:
		return len(typed)
	default:
		return 1
	}
}

func stringField(payload map[string]any, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

func present(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return typed != ""
	case float64:
		return typed != 0
	case []any:
		return len(typed) > 0
	case map[string]any:
		return len(typed) > 0
	default:
		return true
	}
}
