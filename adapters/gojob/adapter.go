package gojob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-relay/core"
)

const (
	JobIDPruneEvents      = "relay.events.prune"
	ScriptPathPruneEvents = "relay/events/prune"

	paramTTLSeconds = "ttl_seconds"
	paramRowCap     = "row_cap"
)

// Pruner applies a retention policy to the relay event store.
type Pruner interface {
	PruneEvents(ctx context.Context, policy core.RetentionPolicy) (int, error)
}

// RetryPolicy bounds how often a failed prune job is requeued.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt clamps opts for the given attempt number.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// PruneMessage builds the execution message for one retention run. The
// idempotency key buckets runs per policy and UTC day.
func PruneMessage(policy core.RetentionPolicy, now time.Time) *job.ExecutionMessage {
	ttl := int64(policy.TTL / time.Second)
	return &job.ExecutionMessage{
		JobID:      JobIDPruneEvents,
		ScriptPath: ScriptPathPruneEvents,
		Parameters: map[string]any{
			paramTTLSeconds: ttl,
			paramRowCap:     policy.RowCap,
		},
		IdempotencyKey: fmt.Sprintf("%s:%d:%d:%s", JobIDPruneEvents, ttl, policy.RowCap, now.UTC().Format("2006-01-02")),
	}
}

// PolicyFromMessage reads the retention policy carried by msg.
func PolicyFromMessage(msg *job.ExecutionMessage) (core.RetentionPolicy, error) {
	if msg == nil {
		return core.RetentionPolicy{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDPruneEvents {
		return core.RetentionPolicy{}, fmt.Errorf("gojob: unsupported job id %q", msg.JobID)
	}
	ttl, err := intParam(msg.Parameters, paramTTLSeconds)
	if err != nil {
		return core.RetentionPolicy{}, err
	}
	rowCap, err := intParam(msg.Parameters, paramRowCap)
	if err != nil {
		return core.RetentionPolicy{}, err
	}
	if ttl < 0 || rowCap < 0 {
		return core.RetentionPolicy{}, fmt.Errorf("gojob: retention parameters must be >= 0")
	}
	return core.RetentionPolicy{TTL: time.Duration(ttl) * time.Second, RowCap: int(rowCap)}, nil
}

type PruneEnqueuer struct {
	enqueuer queue.Enqueuer
	now      func() time.Time
}

func NewPruneEnqueuer(enqueuer queue.Enqueuer) *PruneEnqueuer {
	return &PruneEnqueuer{enqueuer: enqueuer, now: time.Now}
}

func (e *PruneEnqueuer) Enqueue(ctx context.Context, policy core.RetentionPolicy) error {
	if e == nil || e.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	return e.enqueuer.Enqueue(ctx, PruneMessage(policy, e.now()))
}

// PruneRunner executes prune jobs against a Pruner.
type PruneRunner struct {
	pruner Pruner
	policy RetryPolicy
	hook   worker.Hook
}

func NewPruneRunner(pruner Pruner, policy RetryPolicy, hook worker.Hook) *PruneRunner {
	return &PruneRunner{pruner: pruner, policy: policy, hook: hook}
}

// Run prunes with the policy carried by msg and returns the deleted count.
func (r *PruneRunner) Run(ctx context.Context, msg *job.ExecutionMessage) (int, error) {
	if r == nil || r.pruner == nil {
		return 0, fmt.Errorf("gojob: pruner is not configured")
	}
	policy, err := PolicyFromMessage(msg)
	if err != nil {
		return 0, err
	}
	return r.pruner.PruneEvents(ctx, policy)
}

// Process runs one delivery, acking on success and nacking with the retry
// policy on failure.
func (r *PruneRunner) Process(ctx context.Context, delivery queue.Delivery, attempt int) error {
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	event := worker.Event{Message: delivery.Message(), Delivery: delivery, Attempt: attempt, StartedAt: time.Now().UTC()}
	r.emit(ctx, event, (worker.Hook).OnStart)

	_, runErr := r.Run(ctx, delivery.Message())
	event.Duration = time.Since(event.StartedAt)
	if runErr == nil {
		r.emit(ctx, event, (worker.Hook).OnSuccess)
		return delivery.Ack(ctx)
	}

	event.Err = runErr
	opts := r.policy.NormalizeAttempt(queue.NackOptions{Requeue: true, Reason: runErr.Error()}, attempt)
	event.Delay = opts.Delay
	if opts.Requeue {
		r.emit(ctx, event, (worker.Hook).OnRetry)
	} else {
		r.emit(ctx, event, (worker.Hook).OnFailure)
	}
	if err := delivery.Nack(ctx, opts); err != nil {
		return err
	}
	return runErr
}

func (r *PruneRunner) emit(ctx context.Context, event worker.Event, fn func(worker.Hook, context.Context, worker.Event)) {
	if r == nil || r.hook == nil {
		return
	}
	fn(r.hook, ctx, event)
}

// LoggingHook reports prune job lifecycle events through a glog logger.
type LoggingHook struct {
	Logger glog.Logger
}

func (h LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.logger(ctx).Debug("relay job started", eventFields(event)...)
}

func (h LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.logger(ctx).Info("relay job succeeded", eventFields(event)...)
}

func (h LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.logger(ctx).Error("relay job failed", eventFields(event)...)
}

func (h LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.logger(ctx).Warn("relay job retry scheduled", eventFields(event)...)
}

func (h LoggingHook) logger(ctx context.Context) glog.Logger {
	logger := glog.Ensure(h.Logger)
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	return logger
}

func eventFields(event worker.Event) []any {
	fields := []any{"attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	if message != nil {
		fields = append(fields, "job_id", message.JobID, "idempotency_key", message.IdempotencyKey)
	}
	if event.Delay > 0 {
		fields = append(fields, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	return fields
}

func intParam(params map[string]any, key string) (int64, error) {
	switch typed := params[key].(type) {
	case nil:
		return 0, nil
	case int:
		return int64(typed), nil
	case int64:
		return typed, nil
	case float64:
		return int64(typed), nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("gojob: parameter %s: %w", key, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("gojob: parameter %s has unsupported type %T", key, typed)
	}
}

var (
	_ worker.Hook = LoggingHook{}
	_ Pruner      = (*core.Service)(nil)
)
