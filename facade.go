package relay

import (
	"fmt"

	relaycommand "github.com/goliatone/go-relay/command"
	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/inbound"
	relayquery "github.com/goliatone/go-relay/query"
)

// CommandQueryService is the event side of the service used by the facade.
type CommandQueryService interface {
	relaycommand.EventService
	relayquery.RelayEventReader
}

type Commands struct {
	RelayWebhook     *relaycommand.RelayWebhookCommand
	EvaluateProgress *relaycommand.EvaluateProgressCommand
	RecordEvent      *relaycommand.RecordEventCommand
	PruneEvents      *relaycommand.PruneEventsCommand
}

type Queries struct {
	ListEvents  *relayquery.ListRelayEventsQuery
	GetEvent    *relayquery.GetRelayEventQuery
	CheckBudget *relayquery.CheckBudgetQuery
}

type Facade struct {
	service  CommandQueryService
	inbound  core.InboundHandler
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	inbound core.InboundHandler
}

// WithInboundHandler overrides the handler behind the RelayWebhook command.
func WithInboundHandler(handler core.InboundHandler) FacadeOption {
	return func(options *facadeOptions) {
		options.inbound = handler
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("relay: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	handler := cfg.inbound
	if handler == nil {
		handler = resolveInboundHandler(service)
	}

	facade := &Facade{service: service, inbound: handler}
	facade.commands = Commands{
		EvaluateProgress: relaycommand.NewEvaluateProgressCommand(),
		RecordEvent:      relaycommand.NewRecordEventCommand(service),
		PruneEvents:      relaycommand.NewPruneEventsCommand(service),
	}
	if handler != nil {
		facade.commands.RelayWebhook = relaycommand.NewRelayWebhookCommand(handler)
	}
	facade.queries = Queries{
		ListEvents:  relayquery.NewListRelayEventsQuery(service),
		GetEvent:    relayquery.NewGetRelayEventQuery(service),
		CheckBudget: relayquery.NewCheckBudgetQuery(),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// Inbound returns the handler behind the RelayWebhook command, or nil when
// none could be resolved.
func (f *Facade) Inbound() core.InboundHandler {
	if f == nil {
		return nil
	}
	return f.inbound
}

// resolveInboundHandler builds the webhook relay for a concrete service.
// Other implementations must pass WithInboundHandler.
func resolveInboundHandler(service CommandQueryService) core.InboundHandler {
	if handler, ok := service.(core.InboundHandler); ok {
		return handler
	}
	concrete, ok := service.(*core.Service)
	if !ok || concrete == nil {
		return nil
	}
	return inbound.NewRelay(concrete)
}
