package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-relay/core"
	"github.com/uptrace/bun"
)

type relayEventRecord struct {
	bun.BaseModel `bun:"table:relay_events,alias:re"`

	ID             string         `bun:"id,pk"`
	Kind           string         `bun:"kind,notnull"`
	TaskID         *string        `bun:"task_id"`
	StepID         *string        `bun:"step_id"`
	IdempotencyKey *string        `bun:"idempotency_key"`
	Decision       *string        `bun:"decision"`
	Action         *string        `bun:"action"`
	EstimatedCost  *int           `bun:"estimated_cost"`
	Status         string         `bun:"status,notnull"`
	StatusCode     int            `bun:"status_code,notnull"`
	Error          *string        `bun:"error"`
	Metadata       map[string]any `bun:"metadata,type:jsonb,notnull"`
	CreatedAt      time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func newRelayEventRecord(event core.RelayEvent) *relayEventRecord {
	return &relayEventRecord{
		ID:             event.ID,
		Kind:           event.Kind,
		TaskID:         optionalString(event.TaskID),
		StepID:         optionalString(event.StepID),
		IdempotencyKey: optionalString(event.IdempotencyKey),
		Decision:       optionalString(event.Decision),
		Action:         optionalString(event.Action),
		EstimatedCost:  event.EstimatedCost,
		Status:         string(event.Status),
		StatusCode:     event.StatusCode,
		Error:          optionalString(event.Error),
		Metadata:       copyAnyMap(event.Metadata),
		CreatedAt:      event.CreatedAt.UTC(),
	}
}

func (r *relayEventRecord) toDomain() core.RelayEvent {
	if r == nil {
		return core.RelayEvent{}
	}
	var cost *int
	if r.EstimatedCost != nil {
		value := *r.EstimatedCost
		cost = &value
	}
	return core.RelayEvent{
		ID:             r.ID,
		Kind:           r.Kind,
		TaskID:         derefString(r.TaskID),
		StepID:         derefString(r.StepID),
		IdempotencyKey: derefString(r.IdempotencyKey),
		Decision:       derefString(r.Decision),
		Action:         derefString(r.Action),
		EstimatedCost:  cost,
		Status:         core.RelayEventStatus(r.Status),
		StatusCode:     r.StatusCode,
		Error:          derefString(r.Error),
		Metadata:       copyAnyMap(r.Metadata),
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}
