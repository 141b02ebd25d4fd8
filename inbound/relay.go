package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/events"
	"github.com/goliatone/go-relay/progress"
	"github.com/goliatone/go-relay/webhooks"
)

const SurfaceWebhook = "webhook"

type Verifier interface {
	Verify(ctx context.Context, req core.InboundRequest) error
}

// Relay handles one inbound webhook request end to end. It keeps no state
// between requests; the sink call is the only I/O on the request path
// besides the optional event record.
type Relay struct {
	Disabled  bool
	Verifier  Verifier
	Sanitizer events.Sanitizer
	Forwarder core.Forwarder
	Recorder  core.EventRecorder
	Logger    core.Logger
	Metrics   core.MetricsRecorder
}

// NewRelay wires a relay from a configured service. The service is the
// forwarder, and also the recorder when it has an event store.
func NewRelay(service *core.Service) *Relay {
	cfg := service.Config()
	relay := &Relay{
		Disabled:  cfg.Disabled,
		Verifier:  webhooks.SchemeVerifier{Secrets: webhooks.SecretsFromConfig(cfg.Secrets)},
		Sanitizer: events.NewSanitizer(cfg.Pseudonym),
		Forwarder: service,
		Logger:    service.Logger(),
		Metrics:   service.Dependencies().MetricsRecorder,
	}
	relay.Sanitizer.Now = service.Now
	if service.EventStoreConfigured() {
		relay.Recorder = service
	}
	return relay
}

// IsDisabled reports whether the kill switch is on.
func (r *Relay) IsDisabled() bool {
	return r != nil && r.Disabled
}

func (*Relay) Surface() string {
	return SurfaceWebhook
}

// Handle returns the boundary result for req. When err is non-nil the
// result still carries the status code and an {"error": message} body.
func (r *Relay) Handle(ctx context.Context, req core.InboundRequest) (result core.InboundResult, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r == nil {
		return failure(inboundError("inbound: relay is nil", goerrors.CategoryInternal,
			http.StatusInternalServerError, core.RelayErrorInternal, nil))
	}
	startedAt := time.Now()
	defer func() {
		r.observe(ctx, startedAt, result, err)
	}()

	if r.Disabled {
		return failure(inboundDisabled())
	}

	if r.Verifier == nil {
		return failure(inboundError("inbound: verifier is not configured", goerrors.CategoryInternal,
			http.StatusInternalServerError, core.RelayErrorNotConfigured, nil))
	}
	if verr := r.Verifier.Verify(ctx, req); verr != nil {
		return failure(asBoundaryError(verr, http.StatusForbidden))
	}

	var payload any
	if jerr := json.Unmarshal(req.Body, &payload); jerr != nil {
		return failure(inboundWrapError(jerr, goerrors.CategoryBadInput, "inbound: malformed JSON body",
			http.StatusBadRequest, core.RelayErrorBadInput, map[string]any{"reason": jerr.Error()}))
	}

	kind := events.Classify(payload)
	sanitized := r.Sanitizer.Sanitize(payload, kind)
	record := core.RelayEvent{
		Kind:     kind.Label(),
		Metadata: map[string]any{"surface": SurfaceWebhook},
	}
	annotateRecord(&record, kind, sanitized)

	if kind == events.KindProgress {
		if derr := r.evaluatePlanDelta(sanitized, &record); derr != nil {
			rich := asBoundaryError(derr, http.StatusBadRequest)
			r.record(ctx, record, core.RelayEventStatusRejected, rich)
			return failure(rich)
		}
	}

	if r.Forwarder == nil {
		return failure(inboundError("inbound: forwarder is not configured", goerrors.CategoryInternal,
			http.StatusInternalServerError, core.RelayErrorNotConfigured, nil))
	}
	ferr := r.Forwarder.Forward(ctx, core.DispatchEvent{
		EventType:     kind.Label(),
		ClientPayload: sanitized,
	})
	if ferr != nil {
		rich := asBoundaryError(ferr, http.StatusBadGateway)
		r.record(ctx, record, core.RelayEventStatusFailed, rich)
		return failure(rich)
	}
	r.record(ctx, record, core.RelayEventStatusForwarded, nil)

	metadata := map[string]any{"kind": record.Kind}
	if record.Decision != "" {
		metadata["decision"] = record.Decision
		metadata["action"] = record.Action
	}
	return core.InboundResult{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Body:       map[string]any{"status": "ok"},
		Metadata:   metadata,
	}, nil
}

// evaluatePlanDelta validates and evaluates the plan_delta of a sanitized
// progress event. A missing or null plan_delta is not evaluated.
func (r *Relay) evaluatePlanDelta(sanitized any, record *core.RelayEvent) error {
	doc, _ := sanitized.(map[string]any)
	raw, ok := doc["plan_delta"]
	if !ok || raw == nil {
		return nil
	}
	delta, err := progress.DecodePlanDelta(raw)
	if err != nil {
		return err
	}
	outcome, err := progress.Evaluate(delta)
	if err != nil {
		return err
	}
	record.Decision = delta.Decision.String()
	record.Action = string(outcome.Action())
	record.Metadata["should_retry"] = outcome.ShouldRetry
	record.Metadata["should_abort"] = outcome.ShouldAbort
	record.Metadata["use_amended_plan"] = outcome.UseAmendedPlan

	if outcome.UseAmendedPlan {
		plan, perr := progress.DecodePlan(delta.AmendedPlan)
		if perr != nil {
			record.Metadata["amended_plan_error"] = perr.Error()
			return nil
		}
		cost := progress.EstimatePlanCost(plan)
		record.EstimatedCost = &cost
		check := progress.CheckBudget(plan, progress.DefaultBudget())
		record.Metadata["within_budget"] = check.WithinBudget
	}
	return nil
}

// record appends the outcome when a recorder is configured. Failures are
// logged and never change the response.
func (r *Relay) record(ctx context.Context, event core.RelayEvent, status core.RelayEventStatus, cause *goerrors.Error) {
	if r.Recorder == nil {
		return
	}
	requestID := RequestIDFromContext(ctx)
	if requestID != "" {
		event.Metadata["request_id"] = requestID
	}
	event.Status = status
	event.StatusCode = http.StatusOK
	if cause != nil {
		event.StatusCode = cause.Code
		event.Error = publicMessage(cause)
		if code, ok := cause.Metadata["status_code"]; ok {
			event.Metadata["downstream_status"] = code
		}
	}
	if _, err := r.Recorder.RecordEvent(ctx, event); err != nil {
		r.logger(ctx).Warn("relay event record failed",
			"request_id", requestID,
			"kind", event.Kind,
			"task_id", event.TaskID,
			"error", err.Error(),
		)
	}
}

func (r *Relay) observe(ctx context.Context, startedAt time.Time, result core.InboundResult, err error) {
	tags := map[string]string{
		"status_code": fmt.Sprint(result.StatusCode),
	}
	if kind, ok := result.Metadata["kind"].(string); ok {
		tags["kind"] = kind
	}
	if r.Metrics != nil {
		r.Metrics.IncCounter(ctx, "relay.requests.total", 1, tags)
		r.Metrics.ObserveHistogram(ctx, "relay.requests.duration_ms", float64(time.Since(startedAt).Milliseconds()), tags)
	}
	if err == nil {
		return
	}
	args := []any{"status_code", result.StatusCode, "error", err.Error()}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode != "" {
		args = append(args, "error_text_code", rich.TextCode)
	}
	r.logger(ctx).Warn("relay request rejected", args...)
}

func (r *Relay) logger(ctx context.Context) core.Logger {
	logger := glog.Ensure(r.Logger)
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	return logger
}

func annotateRecord(record *core.RelayEvent, kind events.Kind, sanitized any) {
	doc, _ := sanitized.(map[string]any)
	switch kind {
	case events.KindProgress:
		record.TaskID = stringValue(doc["task_id"])
		record.StepID = stringValue(doc["step_id"])
		record.IdempotencyKey = stringValue(doc["idempotency_key"])
		record.Metadata["event_type"] = stringValue(doc["event_type"])
	case events.KindChat:
		items, _ := doc["events"].([]any)
		record.Metadata["event_count"] = len(items)
	}
}

func stringValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func failure(err *goerrors.Error) (core.InboundResult, error) {
	return core.InboundResult{
		Accepted:   false,
		StatusCode: err.Code,
		Body:       map[string]any{"error": publicMessage(err)},
		Metadata:   map[string]any{"text_code": err.TextCode},
	}, err
}

var _ core.InboundHandler = (*Relay)(nil)
