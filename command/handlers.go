package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/progress"
)

type EventService interface {
	RecordEvent(ctx context.Context, event core.RelayEvent) (core.RelayEvent, error)
	PruneEvents(ctx context.Context, policy core.RetentionPolicy) (int, error)
}

type RelayWebhookCommand struct {
	handler core.InboundHandler
}

func NewRelayWebhookCommand(handler core.InboundHandler) *RelayWebhookCommand {
	return &RelayWebhookCommand{handler: handler}
}

// Execute stores the boundary result even when the request is refused, so
// callers can render the status code and error body.
func (c *RelayWebhookCommand) Execute(ctx context.Context, msg RelayWebhookMessage) error {
	if c == nil || c.handler == nil {
		return commandDependencyError("command: inbound handler is required")
	}
	out, err := c.handler.Handle(ctx, msg.Request)
	storeResult(ctx, out)
	return err
}

// ProgressEvaluation is the outcome of one plan_delta evaluation.
type ProgressEvaluation struct {
	Decision progress.Decision `json:"decision"`
	Action   progress.Action   `json:"action"`
	Result   progress.Result   `json:"result"`
}

type EvaluateProgressCommand struct{}

func NewEvaluateProgressCommand() *EvaluateProgressCommand {
	return &EvaluateProgressCommand{}
}

func (c *EvaluateProgressCommand) Execute(ctx context.Context, msg EvaluateProgressMessage) error {
	delta, err := progress.ParsePlanDelta(msg.PlanDelta)
	if err != nil {
		return err
	}
	result, err := progress.Evaluate(delta)
	if err != nil {
		return err
	}
	storeResult(ctx, ProgressEvaluation{
		Decision: delta.Decision,
		Action:   result.Action(),
		Result:   result,
	})
	return nil
}

type RecordEventCommand struct {
	service EventService
}

func NewRecordEventCommand(service EventService) *RecordEventCommand {
	return &RecordEventCommand{service: service}
}

func (c *RecordEventCommand) Execute(ctx context.Context, msg RecordEventMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: event service is required")
	}
	out, err := c.service.RecordEvent(ctx, msg.Event)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type PruneEventsCommand struct {
	service EventService
}

func NewPruneEventsCommand(service EventService) *PruneEventsCommand {
	return &PruneEventsCommand{service: service}
}

func (c *PruneEventsCommand) Execute(ctx context.Context, msg PruneEventsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: event service is required")
	}
	deleted, err := c.service.PruneEvents(ctx, msg.Policy)
	if err != nil {
		return err
	}
	storeResult(ctx, deleted)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
