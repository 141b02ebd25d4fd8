package query

import (
	"context"

	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/progress"
)

type RelayEventReader interface {
	ListEvents(ctx context.Context, filter core.RelayEventFilter) (core.RelayEventPage, error)
	GetEvent(ctx context.Context, idempotencyKey string) (core.RelayEvent, error)
}

type ListRelayEventsQuery struct {
	reader RelayEventReader
}

func NewListRelayEventsQuery(reader RelayEventReader) *ListRelayEventsQuery {
	return &ListRelayEventsQuery{reader: reader}
}

func (q *ListRelayEventsQuery) Query(ctx context.Context, msg ListRelayEventsMessage) (core.RelayEventPage, error) {
	if q == nil || q.reader == nil {
		return core.RelayEventPage{}, queryDependencyError("query: relay event reader is required")
	}
	return q.reader.ListEvents(ctx, msg.Filter)
}

type GetRelayEventQuery struct {
	reader RelayEventReader
}

func NewGetRelayEventQuery(reader RelayEventReader) *GetRelayEventQuery {
	return &GetRelayEventQuery{reader: reader}
}

func (q *GetRelayEventQuery) Query(ctx context.Context, msg GetRelayEventMessage) (core.RelayEvent, error) {
	if q == nil || q.reader == nil {
		return core.RelayEvent{}, queryDependencyError("query: relay event reader is required")
	}
	return q.reader.GetEvent(ctx, msg.IdempotencyKey)
}

// PlanBudgetReport is the budget check of a plan plus, when over budget,
// the degraded alternative.
type PlanBudgetReport struct {
	Check    progress.BudgetCheck `json:"check"`
	Degraded *progress.Plan       `json:"degraded,omitempty"`
}

type CheckBudgetQuery struct{}

func NewCheckBudgetQuery() *CheckBudgetQuery {
	return &CheckBudgetQuery{}
}

func (q *CheckBudgetQuery) Query(_ context.Context, msg CheckBudgetMessage) (PlanBudgetReport, error) {
	if err := msg.Validate(); err != nil {
		return PlanBudgetReport{}, err
	}
	report := PlanBudgetReport{Check: progress.CheckBudget(msg.Plan, msg.Budget)}
	if !report.Check.WithinBudget {
		degraded := progress.SuggestDegrade(msg.Plan)
		report.Degraded = &degraded
	}
	return report, nil
}
