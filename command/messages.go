package command

import (
	"encoding/json"
	"strings"

	"github.com/goliatone/go-relay/core"
)

const (
	TypeRelayWebhook     = "relay.command.webhook.relay"
	TypeEvaluateProgress = "relay.command.progress.evaluate"
	TypeRecordEvent      = "relay.command.event.record"
	TypePruneEvents      = "relay.command.event.prune"
)

type RelayWebhookMessage struct {
	Request core.InboundRequest
}

func (RelayWebhookMessage) Type() string { return TypeRelayWebhook }

func (m RelayWebhookMessage) Validate() error {
	if len(m.Request.Body) == 0 {
		return commandValidationError("body", "request body is required")
	}
	return nil
}

// EvaluateProgressMessage carries a raw plan_delta document.
type EvaluateProgressMessage struct {
	PlanDelta json.RawMessage
}

func (EvaluateProgressMessage) Type() string { return TypeEvaluateProgress }

func (m EvaluateProgressMessage) Validate() error {
	if len(strings.TrimSpace(string(m.PlanDelta))) == 0 {
		return commandValidationError("plan_delta", "plan delta is required")
	}
	return nil
}

type RecordEventMessage struct {
	Event core.RelayEvent
}

func (RecordEventMessage) Type() string { return TypeRecordEvent }

func (m RecordEventMessage) Validate() error {
	if strings.TrimSpace(m.Event.Kind) == "" {
		return commandValidationError("kind", "event kind is required")
	}
	return nil
}

type PruneEventsMessage struct {
	Policy core.RetentionPolicy
}

func (PruneEventsMessage) Type() string { return TypePruneEvents }

func (m PruneEventsMessage) Validate() error {
	if m.Policy.TTL < 0 {
		return commandValidationError("ttl", "ttl must be >= 0")
	}
	if m.Policy.RowCap < 0 {
		return commandValidationError("row_cap", "row cap must be >= 0")
	}
	if m.Policy.TTL == 0 && m.Policy.RowCap == 0 {
		return commandValidationError("policy", "ttl or row cap is required")
	}
	return nil
}
