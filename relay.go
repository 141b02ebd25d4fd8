package relay

import "github.com/goliatone/go-relay/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type DispatchSink = core.DispatchSink
type EventStore = core.EventStore
type RelayEvent = core.RelayEvent
type RelayEventFilter = core.RelayEventFilter
type RelayEventPage = core.RelayEventPage
type RetentionPolicy = core.RetentionPolicy

type InboundRequest = core.InboundRequest
type InboundResult = core.InboundResult

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithErrorFactory    = core.WithErrorFactory
	WithErrorMapper     = core.WithErrorMapper
	WithConfigProvider  = core.WithConfigProvider
	WithOptionsResolver = core.WithOptionsResolver
	WithDispatchSink    = core.WithDispatchSink
	WithEventStore      = core.WithEventStore
	WithClock           = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}
