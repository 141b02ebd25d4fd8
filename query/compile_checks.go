package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-relay/core"
)

var (
	_ gocmd.Querier[ListRelayEventsMessage, core.RelayEventPage] = (*ListRelayEventsQuery)(nil)
	_ gocmd.Querier[GetRelayEventMessage, core.RelayEvent]       = (*GetRelayEventQuery)(nil)
	_ gocmd.Querier[CheckBudgetMessage, PlanBudgetReport]        = (*CheckBudgetQuery)(nil)
)
