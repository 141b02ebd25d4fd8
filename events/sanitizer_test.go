package events

import (
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-relay/core"
)

var progressFields = map[string]bool{
	"event_type":      true,
	"task_id":         true,
	"step_id":         true,
	"ts":              true,
	"idempotency_key": true,
	"plan_title":      true,
	"metrics":         true,
	"context":         true,
	"preview":         true,
	"error":           true,
	"plan_delta":      true,
}

func fixedSanitizer() Sanitizer {
	return Sanitizer{
		Pseudonymizer: Pseudonymizer{},
		Now: func() time.Time {
			return time.Date(2026, 3, 1, 9, 30, 0, 123000000, time.FixedZone("JST", 9*60*60))
		},
	}
}

func TestSanitize_ProgressDropsUnlistedFields(t *testing.T) {
	payload := map[string]any{
		"event_type":      "step.completed",
		"task_id":         "task_1",
		"step_id":         "s2",
		"ts":              "2026-03-01T00:00:00.000Z",
		"idempotency_key": "idem_1",
		"plan_title":      "weekly digest",
		"metrics":         map[string]any{"tokens": float64(120)},
		"context":         map[string]any{"channel": "ops"},
		"preview":         "done",
		"plan_delta":      map[string]any{"decision": "proceed"},
		"user_email":      "someone@example.com",
		"raw":             map[string]any{"secret": "x"},
	}
	out, ok := fixedSanitizer().Sanitize(payload, KindProgress).(map[string]any)
	if !ok {
		t.Fatalf("expected map output")
	}
	for key := range out {
		if !progressFields[key] {
			t.Fatalf("unexpected field %q in sanitized progress event", key)
		}
	}
	if out["ts"] != "2026-03-01T00:00:00.000Z" {
		t.Fatalf("expected input timestamp to be preserved, got %v", out["ts"])
	}
	if out["idempotency_key"] != "idem_1" || out["plan_title"] != "weekly digest" {
		t.Fatalf("expected verbatim pass-through fields, got %#v", out)
	}
	if out["error"] != nil {
		t.Fatalf("expected missing error to default to nil, got %v", out["error"])
	}
}

func TestSanitize_ProgressDefaults(t *testing.T) {
	out := fixedSanitizer().Sanitize(map[string]any{
		"event_type": "step.started",
		"task_id":    "task_1",
		"step_id":    "",
		"preview":    "",
	}, KindProgress).(map[string]any)

	if out["ts"] != "2026-03-01T00:30:00.123Z" {
		t.Fatalf("expected defaulted UTC timestamp, got %v", out["ts"])
	}
	if out["step_id"] != nil || out["preview"] != nil || out["error"] != nil {
		t.Fatalf("expected nil defaults, got %#v", out)
	}
	if metrics, ok := out["metrics"].(map[string]any); !ok || len(metrics) != 0 {
		t.Fatalf("expected empty metrics, got %#v", out["metrics"])
	}
	if ctx, ok := out["context"].(map[string]any); !ok || len(ctx) != 0 {
		t.Fatalf("expected empty context, got %#v", out["context"])
	}
	for _, key := range []string{"idempotency_key", "plan_title", "plan_delta"} {
		if _, ok := out[key]; ok {
			t.Fatalf("expected absent %s to stay absent", key)
		}
	}
}

func TestSanitize_ProgressTimestampUsesCurrentTime(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	out := NewSanitizer(core.PseudonymConfig{}).Sanitize(map[string]any{
		"event_type": "step.started",
		"task_id":    "task_1",
	}, KindProgress).(map[string]any)

	raw, _ := out["ts"].(string)
	ts, err := time.Parse(TimestampLayout, raw)
	if err != nil {
		t.Fatalf("expected parseable timestamp, got %q: %v", raw, err)
	}
	if ts.Before(before) {
		t.Fatalf("expected timestamp near now, got %s", raw)
	}
}

func TestSanitize_ChatPseudonymizesUsersAndDropsContent(t *testing.T) {
	sanitizer := fixedSanitizer()
	payload := map[string]any{
		"destination": "Ubot",
		"events": []any{
			map[string]any{
				"type":       "message",
				"timestamp":  float64(1700000000000),
				"replyToken": "reply_1",
				"source":     map[string]any{"type": "user", "userId": "U123"},
				"message": map[string]any{
					"type":       "text",
					"id":         "m1",
					"text":       "hello",
					"emojis":     []any{"x"},
					"quoteToken": "q1",
				},
				"webhookEventId": "evt_1",
			},
			map[string]any{
				"type":   "follow",
				"source": map[string]any{"type": "user", "userId": ""},
			},
		},
		"extra": "dropped",
	}
	out := sanitizer.Sanitize(payload, KindChat).(map[string]any)
	if _, ok := out["extra"]; ok {
		t.Fatalf("expected top-level extras to be dropped")
	}
	events := out["events"].([]any)
	if len(events) != 2 {
		t.Fatalf("expected 2 projected events, got %d", len(events))
	}

	first := events[0].(map[string]any)
	if _, ok := first["webhookEventId"]; ok {
		t.Fatalf("expected unlisted event fields to be dropped")
	}
	source := first["source"].(map[string]any)
	userID := source["userId"].(string)
	if userID == "U123" || userID == "" {
		t.Fatalf("expected pseudonymized user id, got %q", userID)
	}
	if userID != sanitizer.Pseudonymizer.Derive("U123") {
		t.Fatalf("expected deterministic pseudonym")
	}
	message := first["message"].(map[string]any)
	if len(message) != 3 || message["text"] != "hello" {
		t.Fatalf("expected message reduced to type/id/text, got %#v", message)
	}

	second := events[1].(map[string]any)
	if second["message"] != nil {
		t.Fatalf("expected missing message to be nil, got %#v", second["message"])
	}
	if got := second["source"].(map[string]any)["userId"]; got != "" {
		t.Fatalf("expected empty user id to stay empty, got %v", got)
	}
}

func TestSanitize_UnknownIsIdentity(t *testing.T) {
	payload := map[string]any{"anything": "goes", "userId": "U123"}
	out := fixedSanitizer().Sanitize(payload, KindUnknown).(map[string]any)
	if len(out) != 2 || out["userId"] != "U123" {
		t.Fatalf("expected unknown payload unchanged, got %#v", out)
	}
	if got := fixedSanitizer().Sanitize("plain", KindProgress); got != "plain" {
		t.Fatalf("expected non-object payload unchanged, got %#v", got)
	}
}

func TestPseudonymizer_Derive(t *testing.T) {
	plain := Pseudonymizer{}
	token := plain.Derive("U123")
	if len(token) != core.DefaultPseudonymLength {
		t.Fatalf("expected default length %d, got %d", core.DefaultPseudonymLength, len(token))
	}
	if strings.Trim(token, "0123456789abcdef") != "" {
		t.Fatalf("expected hex token, got %q", token)
	}
	if token != plain.Derive("U123") {
		t.Fatalf("expected deterministic token")
	}
	if token == plain.Derive("U124") {
		t.Fatalf("expected different identifiers to produce different tokens")
	}
	if plain.Derive("") != "" {
		t.Fatalf("expected empty identifier to map to empty token")
	}

	keyed := Pseudonymizer{Key: "pepper"}
	if keyed.Derive("U123") == token {
		t.Fatalf("expected keyed token to differ from unkeyed token")
	}

	if got := (Pseudonymizer{Length: 64}).Derive("U123"); len(got) != 64 {
		t.Fatalf("expected full digest, got %d chars", len(got))
	}
	if got := (Pseudonymizer{Length: 500}).Derive("U123"); len(got) != core.MaxPseudonymLength {
		t.Fatalf("expected length clamp, got %d chars", len(got))
	}
	if !strings.HasPrefix((Pseudonymizer{Length: 64}).Derive("U123"), token) {
		t.Fatalf("expected truncation of the same digest")
	}
}
