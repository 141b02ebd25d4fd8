package query

import (
	"strings"

	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/progress"
)

const (
	TypeListRelayEvents = "relay.query.event.list"
	TypeGetRelayEvent   = "relay.query.event.get"
	TypeCheckBudget     = "relay.query.plan.check_budget"
)

type ListRelayEventsMessage struct {
	Filter core.RelayEventFilter
}

func (ListRelayEventsMessage) Type() string { return TypeListRelayEvents }

func (m ListRelayEventsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "per_page must be >= 0")
	}
	if m.Filter.From != nil && m.Filter.To != nil && m.Filter.To.Before(*m.Filter.From) {
		return queryValidationError("to", "to must not be before from")
	}
	return nil
}

type GetRelayEventMessage struct {
	IdempotencyKey string
}

func (GetRelayEventMessage) Type() string { return TypeGetRelayEvent }

func (m GetRelayEventMessage) Validate() error {
	if strings.TrimSpace(m.IdempotencyKey) == "" {
		return queryValidationError("idempotency_key", "idempotency key is required")
	}
	return nil
}

// CheckBudgetMessage asks for the cost estimate of Plan. A zero Budget uses
// the default limits.
type CheckBudgetMessage struct {
	Plan   progress.Plan
	Budget progress.Budget
}

func (CheckBudgetMessage) Type() string { return TypeCheckBudget }

func (m CheckBudgetMessage) Validate() error {
	if m.Budget.Daily < 0 || m.Budget.Weekly < 0 {
		return queryValidationError("budget", "budget limits must be >= 0")
	}
	return nil
}
