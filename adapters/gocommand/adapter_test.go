package gocommand

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	relaycommand "github.com/goliatone/go-relay/command"
	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/progress"
	relayquery "github.com/goliatone/go-relay/query"
)

type okMessage struct{}

func (okMessage) Type() string { return "relay.test.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "relay.test.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type dispatchMessage struct {
	ID string
}

func (dispatchMessage) Type() string { return "relay.test.test" }

type queueMessage struct{}

func (queueMessage) Type() string { return "relay.test.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
}

func TestRegistryAndDispatchWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	executed := 0
	customResolverCalled := 0

	cmd := command.CommandFunc[dispatchMessage](func(context.Context, dispatchMessage) error {
		executed++
		return nil
	})

	if _, err := RegisterAndSubscribe(adapter, cmd); err != nil {
		t.Fatalf("register and subscribe: %v", err)
	}
	if err := adapter.AddResolver("custom", func(any, command.CommandMeta, *command.Registry) error {
		customResolverCalled++
		return nil
	}); err != nil {
		t.Fatalf("add resolver: %v", err)
	}
	if !adapter.HasResolver("custom") {
		t.Fatalf("expected custom resolver to be registered")
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}
	if customResolverCalled == 0 {
		t.Fatalf("expected resolver hook to run during initialization")
	}

	if err := Dispatch(context.Background(), dispatchMessage{ID: "m1"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if executed != 1 {
		t.Fatalf("expected command execution count=1, got %d", executed)
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("relay.test.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}

type stubEventService struct {
	recorded []core.RelayEvent
}

func (s *stubEventService) RecordEvent(_ context.Context, event core.RelayEvent) (core.RelayEvent, error) {
	s.recorded = append(s.recorded, event)
	return event, nil
}

func (s *stubEventService) PruneEvents(context.Context, core.RetentionPolicy) (int, error) {
	return 0, nil
}

func (s *stubEventService) ListEvents(context.Context, core.RelayEventFilter) (core.RelayEventPage, error) {
	return core.RelayEventPage{Items: s.recorded, Total: len(s.recorded)}, nil
}

func (s *stubEventService) GetEvent(_ context.Context, key string) (core.RelayEvent, error) {
	for _, event := range s.recorded {
		if event.IdempotencyKey == key {
			return event, nil
		}
	}
	return core.RelayEvent{}, core.ErrEventNotFound
}

func TestRegisterRelayHandlers_DispatchesCommandsAndQueries(t *testing.T) {
	events := &stubEventService{}
	adapter := NewRegistryAdapter(command.NewRegistry())
	subs, err := RegisterRelayHandlers(adapter, RelayHandlers{Events: events})
	if err != nil {
		t.Fatalf("register relay handlers: %v", err)
	}
	defer subs.Unsubscribe()
	if len(subs) != 6 {
		t.Fatalf("expected 6 subscriptions without an inbound handler, got %d", len(subs))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	ctx := context.Background()
	if err := Dispatch(ctx, relaycommand.RecordEventMessage{Event: core.RelayEvent{
		Kind:           "manus_progress",
		IdempotencyKey: "task-9:s2",
	}}); err != nil {
		t.Fatalf("dispatch record event: %v", err)
	}
	event, err := Query[relayquery.GetRelayEventMessage, core.RelayEvent](ctx, relayquery.GetRelayEventMessage{
		IdempotencyKey: "task-9:s2",
	})
	if err != nil {
		t.Fatalf("query relay event: %v", err)
	}
	if event.Kind != "manus_progress" {
		t.Fatalf("expected recorded event, got %#v", event)
	}

	report, err := Query[relayquery.CheckBudgetMessage, relayquery.PlanBudgetReport](ctx, relayquery.CheckBudgetMessage{
		Plan: progress.Plan{Steps: []progress.PlanStep{{ID: "s1", Action: "notion.append"}}},
	})
	if err != nil {
		t.Fatalf("query budget: %v", err)
	}
	if report.Check.EstimatedCost != 3 || !report.Check.WithinBudget {
		t.Fatalf("unexpected budget report: %#v", report.Check)
	}
}

func TestRegisterRelayHandlers_RequiresRegistry(t *testing.T) {
	if _, err := RegisterRelayHandlers(nil, RelayHandlers{}); err == nil {
		t.Fatalf("expected missing registry error")
	}
}
