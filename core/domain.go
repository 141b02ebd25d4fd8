package core

import (
	"strings"
	"time"
)

// DispatchEvent is the typed envelope handed to the downstream sink.
type DispatchEvent struct {
	EventType     string `json:"event_type"`
	ClientPayload any    `json:"client_payload"`
}

type Credential struct {
	Token     string
	TokenType string
}

type RelayEventStatus string

const (
	RelayEventStatusForwarded RelayEventStatus = "forwarded"
	RelayEventStatusRejected  RelayEventStatus = "rejected"
	RelayEventStatusFailed    RelayEventStatus = "failed"
)

// RelayEvent is the record kept for every request that reached the
// dispatch stage. It never carries raw payload content.
type RelayEvent struct {
	ID             string
	Kind           string
	TaskID         string
	StepID         string
	IdempotencyKey string
	Decision       string
	Action         string
	EstimatedCost  *int
	Status         RelayEventStatus
	StatusCode     int
	Error          string
	Metadata       map[string]any
	CreatedAt      time.Time
}

// Normalize trims identifiers and fills the status default.
func (e RelayEvent) Normalize() RelayEvent {
	e.ID = strings.TrimSpace(e.ID)
	e.Kind = strings.TrimSpace(e.Kind)
	e.TaskID = strings.TrimSpace(e.TaskID)
	e.StepID = strings.TrimSpace(e.StepID)
	e.IdempotencyKey = strings.TrimSpace(e.IdempotencyKey)
	e.Decision = strings.TrimSpace(e.Decision)
	e.Action = strings.TrimSpace(e.Action)
	if strings.TrimSpace(string(e.Status)) == "" {
		e.Status = RelayEventStatusForwarded
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	if !e.CreatedAt.IsZero() {
		e.CreatedAt = e.CreatedAt.UTC()
	}
	return e
}
