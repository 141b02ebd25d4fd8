package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"
)

var (
	ErrSinkNotConfigured       = errors.New("core: dispatch sink is not configured")
	ErrEventStoreNotConfigured = errors.New("core: event store is not configured")
	ErrEventNotFound           = errors.New("core: relay event not found")
)

// Forwarder hands a sanitized event to the downstream sink exactly once.
type Forwarder interface {
	Forward(ctx context.Context, event DispatchEvent) error
}

// EventRecorder appends relay outcomes to the event store.
type EventRecorder interface {
	RecordEvent(ctx context.Context, event RelayEvent) (RelayEvent, error)
}

type Service struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorFactory    ErrorFactory
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	sink            DispatchSink
	eventStore      EventStore
	now             func() time.Time
}

type ServiceDependencies struct {
	Logger          Logger
	LoggerProvider  LoggerProvider
	MetricsRecorder MetricsRecorder
	ErrorFactory    ErrorFactory
	ErrorMapper     ErrorMapper
	ConfigProvider  ConfigProvider
	OptionsResolver OptionsResolver
	DispatchSink    DispatchSink
	EventStore      EventStore
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve(DefaultServiceName, builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger(DefaultServiceName); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = time.Now
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Service{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorFactory:    builder.errorFactory,
		errorMapper:     builder.errorMapper,
		configProvider:  builder.configProvider,
		optionsResolver: builder.optionsResolver,
		sink:            builder.sink,
		eventStore:      builder.eventStore,
		now:             builder.now,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:          s.logger,
		LoggerProvider:  s.loggerProvider,
		MetricsRecorder: s.metricsRecorder,
		ErrorFactory:    s.errorFactory,
		ErrorMapper:     s.errorMapper,
		ConfigProvider:  s.configProvider,
		OptionsResolver: s.optionsResolver,
		DispatchSink:    s.sink,
		EventStore:      s.eventStore,
	}
}

func (s *Service) Logger() Logger {
	if s == nil || s.logger == nil {
		return glog.Nop()
	}
	return s.logger
}

func (s *Service) LoggerProvider() LoggerProvider {
	if s == nil || s.loggerProvider == nil {
		return glog.ProviderFromLogger(s.Logger())
	}
	return s.loggerProvider
}

// Now returns the service clock in UTC.
func (s *Service) Now() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}

func (s *Service) EventStoreConfigured() bool {
	return s != nil && s.eventStore != nil
}

// Forward calls the dispatch sink once, bounded by dispatch.timeout. Sink
// failures are returned as external errors carrying a 502 status; they are
// never retried here.
func (s *Service) Forward(ctx context.Context, event DispatchEvent) (err error) {
	startedAt := time.Now()
	fields := map[string]any{"kind": strings.TrimSpace(event.EventType)}
	defer func() {
		s.observeOperation(ctx, startedAt, "forward", err, fields)
	}()

	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	if strings.TrimSpace(event.EventType) == "" {
		return s.mapError(s.newError("core: dispatch event type is required", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(RelayErrorBadInput))
	}
	if s.sink == nil {
		return s.mapError(goerrors.Wrap(ErrSinkNotConfigured, goerrors.CategoryInternal, "core: dispatch sink is not configured").
			WithCode(http.StatusInternalServerError).
			WithTextCode(RelayErrorNotConfigured))
	}

	dispatchCtx := ctx
	if dispatchCtx == nil {
		dispatchCtx = context.Background()
	}
	cancel := func() {}
	if timeout := s.config.Dispatch.Timeout; timeout > 0 {
		dispatchCtx, cancel = context.WithTimeout(dispatchCtx, timeout)
	}
	defer cancel()

	if sinkErr := s.sink.Dispatch(dispatchCtx, event); sinkErr != nil {
		var rich *goerrors.Error
		if goerrors.As(sinkErr, &rich) {
			if code, ok := rich.Metadata["status_code"]; ok {
				fields["status_code"] = code
			}
			return s.mapError(rich)
		}
		return s.mapError(goerrors.Wrap(sinkErr, goerrors.CategoryExternal, "core: dispatch sink failed").
			WithCode(http.StatusBadGateway).
			WithTextCode(RelayErrorDownstreamFailed))
	}
	return nil
}

// RecordEvent appends event to the configured store, assigning an id and
// timestamp when missing.
func (s *Service) RecordEvent(ctx context.Context, event RelayEvent) (recorded RelayEvent, err error) {
	startedAt := time.Now()
	event = event.Normalize()
	fields := map[string]any{
		"kind":            event.Kind,
		"task_id":         event.TaskID,
		"idempotency_key": event.IdempotencyKey,
		"status":          string(event.Status),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "record_event", err, fields)
	}()

	if s == nil {
		return RelayEvent{}, fmt.Errorf("core: service is nil")
	}
	if s.eventStore == nil {
		return RelayEvent{}, s.mapError(ErrEventStoreNotConfigured)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.Now()
	}
	event.Metadata = RedactSensitiveMap(event.Metadata)
	recorded, err = s.eventStore.Append(ctx, event)
	if err != nil {
		return RelayEvent{}, s.mapError(err)
	}
	return recorded, nil
}

func (s *Service) ListEvents(ctx context.Context, filter RelayEventFilter) (RelayEventPage, error) {
	if s == nil || s.eventStore == nil {
		return RelayEventPage{}, s.mapError(ErrEventStoreNotConfigured)
	}
	page, err := s.eventStore.List(ctx, filter)
	if err != nil {
		return RelayEventPage{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) GetEvent(ctx context.Context, idempotencyKey string) (RelayEvent, error) {
	if s == nil || s.eventStore == nil {
		return RelayEvent{}, s.mapError(ErrEventStoreNotConfigured)
	}
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return RelayEvent{}, s.mapError(goerrors.NewValidation("core: validation failed", goerrors.FieldError{
			Field:   "idempotency_key",
			Message: "idempotency key is required",
		}).WithCode(http.StatusBadRequest).WithTextCode(RelayErrorBadInput))
	}
	event, err := s.eventStore.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return RelayEvent{}, s.mapError(err)
	}
	return event, nil
}

// PruneEvents applies a retention policy when the store supports it.
func (s *Service) PruneEvents(ctx context.Context, policy RetentionPolicy) (deleted int, err error) {
	startedAt := time.Now()
	defer func() {
		s.observeOperation(ctx, startedAt, "prune_events", err, map[string]any{"deleted": deleted})
	}()
	if s == nil || s.eventStore == nil {
		return 0, s.mapError(ErrEventStoreNotConfigured)
	}
	pruner, ok := s.eventStore.(RetentionPruner)
	if !ok {
		return 0, s.mapError(s.newError("core: event store does not support retention pruning", goerrors.CategoryOperation).
			WithCode(http.StatusNotImplemented).
			WithTextCode(RelayErrorOperationFailed))
	}
	deleted, err = pruner.Prune(ctx, policy)
	if err != nil {
		return deleted, s.mapError(err)
	}
	return deleted, nil
}

func (s *Service) newError(message string, category goerrors.Category) *goerrors.Error {
	factory := ErrorFactory(goerrors.New)
	if s != nil && s.errorFactory != nil {
		factory = s.errorFactory
	}
	if err := factory(message, category); err != nil {
		return err
	}
	return goerrors.New(message, category)
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	mapper := defaultErrorMapper
	if s != nil && s.errorMapper != nil {
		mapper = s.errorMapper
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		mapper = defaultErrorMapper
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}
