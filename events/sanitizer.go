package events

import (
	"time"

	"github.com/goliatone/go-relay/core"
)

// TimestampLayout is the ISO-8601 form used for defaulted progress
// timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Sanitizer projects payloads to the minimal field set allowed to leave the
// relay. It holds no mutable state and is safe for concurrent use.
type Sanitizer struct {
	Pseudonymizer Pseudonymizer
	Now           func() time.Time
}

func NewSanitizer(cfg core.PseudonymConfig) Sanitizer {
	return Sanitizer{Pseudonymizer: NewPseudonymizer(cfg), Now: time.Now}
}

// Sanitize returns the projection of payload for kind. Unknown payloads are
// returned unchanged.
func (s Sanitizer) Sanitize(payload any, kind Kind) any {
	doc, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	switch kind {
	case KindProgress:
		return s.sanitizeProgress(doc)
	case KindChat:
		return s.sanitizeChat(doc)
	default:
		return payload
	}
}

func (s Sanitizer) sanitizeProgress(doc map[string]any) map[string]any {
	out := map[string]any{
		"event_type": doc["event_type"],
		"task_id":    doc["task_id"],
		"step_id":    orDefault(doc["step_id"], nil),
		"ts":         orDefault(doc["ts"], s.now().UTC().Format(TimestampLayout)),
		"metrics":    orDefault(doc["metrics"], map[string]any{}),
		"context":    orDefault(doc["context"], map[string]any{}),
		"preview":    orDefault(doc["preview"], nil),
		"error":      orDefault(doc["error"], nil),
	}
	for _, key := range []string{"idempotency_key", "plan_title", "plan_delta"} {
		if value, ok := doc[key]; ok {
			out[key] = value
		}
	}
	return out
}

func (s Sanitizer) sanitizeChat(doc map[string]any) map[string]any {
	items, _ := doc["events"].([]any)
	projected := make([]any, 0, len(items))
	for _, item := range items {
		event, _ := item.(map[string]any)
		source, _ := event["source"].(map[string]any)
		userID, _ := source["userId"].(string)

		var message any
		if raw, ok := event["message"].(map[string]any); ok {
			message = map[string]any{
				"type": raw["type"],
				"id":   raw["id"],
				"text": raw["text"],
			}
		}

		projected = append(projected, map[string]any{
			"type":      event["type"],
			"timestamp": event["timestamp"],
			"source": map[string]any{
				"type":   source["type"],
				"userId": s.Pseudonymizer.Derive(userID),
			},
			"replyToken": event["replyToken"],
			"message":    message,
		})
	}
	return map[string]any{
		"destination": doc["destination"],
		"events":      projected,
	}
}

func (s Sanitizer) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func orDefault(value any, fallback any) any {
	if truthy(value) {
		return value
	}
	return fallback
}
