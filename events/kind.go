package events

import (
	"encoding/json"
	"strings"
)

// Kind is the canonical classification of an inbound payload.
type Kind int

const (
	KindUnknown Kind = iota
	KindProgress
	KindChat
)

const (
	LabelProgress = "manus_progress"
	LabelChat     = "line_event"
	LabelUnknown  = "unknown"
)

// Label is the wire label used as the dispatch event type.
func (k Kind) Label() string {
	switch k {
	case KindProgress:
		return LabelProgress
	case KindChat:
		return LabelChat
	default:
		return LabelUnknown
	}
}

func (k Kind) String() string {
	return k.Label()
}

// ParseKind maps a wire label back to a Kind. Unrecognized labels are
// KindUnknown.
func ParseKind(label string) Kind {
	switch strings.TrimSpace(strings.ToLower(label)) {
	case LabelProgress:
		return KindProgress
	case LabelChat:
		return KindChat
	default:
		return KindUnknown
	}
}

// Classify assigns exactly one Kind to a decoded JSON payload. The progress
// check runs first, so a payload that looks like both is a progress event.
func Classify(payload any) Kind {
	doc, ok := payload.(map[string]any)
	if !ok {
		return KindUnknown
	}
	if truthy(doc["event_type"]) && truthy(doc["task_id"]) {
		return KindProgress
	}
	if _, ok := doc["events"].([]any); ok {
		return KindChat
	}
	return KindUnknown
}

// truthy treats nil, false, "", and numeric zero as absent. Containers are
// present even when empty.
func truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		return typed != ""
	case float64:
		return typed != 0
	case float32:
		return typed != 0
	case int:
		return typed != 0
	case int64:
		return typed != 0
	case json.Number:
		f, err := typed.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
