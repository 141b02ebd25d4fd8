package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig   Config
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

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

// WithDispatchSink sets the downstream sink that receives forwarded events.
func WithDispatchSink(sink DispatchSink) Option {
	return func(b *serviceBuilder) {
		b.sink = sink
	}
}

// WithEventStore sets the append-only store used to record relay outcomes.
func WithEventStore(store EventStore) Option {
	return func(b *serviceBuilder) {
		b.eventStore = store
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve(DefaultServiceName, nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now:             time.Now,
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return relayErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// NewStaticConfigLoader returns a loader that serves a fixed raw config map.
func NewStaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

// EnvConfigLoader reads the relay settings from process environment
// variables. Only variables that are present contribute to the raw map.
type EnvConfigLoader struct {
	Lookup func(key string) (string, bool)
}

func NewEnvConfigLoader() EnvConfigLoader {
	return EnvConfigLoader{Lookup: os.LookupEnv}
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	env := func(key string) (string, bool) {
		value, ok := lookup(key)
		if !ok {
			return "", false
		}
		value = strings.TrimSpace(value)
		return value, value != ""
	}

	raw := map[string]any{}
	if value, ok := env("RELAY_SERVICE_NAME"); ok {
		raw["service_name"] = value
	}
	if value, ok := env("FEATURE_BOT_ENABLED"); ok {
		raw["disabled"] = strings.EqualFold(value, "false")
	}

	secrets := map[string]any{}
	if value, ok := env("LINE_CHANNEL_SECRET"); ok {
		secrets["chat_channel_secret"] = value
	}
	if value, ok := env("MANUS_API_KEY"); ok {
		secrets["progress_api_key"] = value
	}
	if len(secrets) > 0 {
		raw["secrets"] = secrets
	}

	dispatch := map[string]any{}
	if value, ok := env("GH_OWNER"); ok {
		dispatch["owner"] = value
	}
	if value, ok := env("GH_REPO"); ok {
		dispatch["repo"] = value
	}
	if value, ok := env("GH_PAT"); ok {
		dispatch["token"] = value
	}
	if value, ok := env("GH_API_URL"); ok {
		dispatch["base_url"] = value
	}
	if value, ok := env("DISPATCH_TIMEOUT"); ok {
		timeout, err := parseEnvDuration(value)
		if err != nil {
			return nil, fmt.Errorf("core: DISPATCH_TIMEOUT: %w", err)
		}
		dispatch["timeout"] = timeout
	}
	if len(dispatch) > 0 {
		raw["dispatch"] = dispatch
	}

	pseudonym := map[string]any{}
	if value, ok := env("PSEUDONYM_KEY"); ok {
		pseudonym["key"] = value
	}
	if value, ok := env("PSEUDONYM_LENGTH"); ok {
		length, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("core: PSEUDONYM_LENGTH: %w", err)
		}
		pseudonym["length"] = length
	}
	if len(pseudonym) > 0 {
		raw["pseudonym"] = pseudonym
	}

	store := map[string]any{}
	if value, ok := env("RELAY_DATABASE_DRIVER"); ok {
		store["driver"] = value
	}
	if value, ok := env("RELAY_DATABASE_DSN"); ok {
		store["dsn"] = value
	}
	if value, ok := env("RELAY_DATABASE_DEBUG"); ok {
		store["debug"] = strings.EqualFold(value, "true")
	}
	if value, ok := env("RELAY_EVENT_CACHE_TTL"); ok {
		ttl, err := parseEnvDuration(value)
		if err != nil {
			return nil, fmt.Errorf("core: RELAY_EVENT_CACHE_TTL: %w", err)
		}
		store["cache_ttl"] = ttl
	}
	if len(store) > 0 {
		raw["store"] = store
	}
	return raw, nil
}

// parseEnvDuration accepts Go duration strings or a bare number of seconds.
func parseEnvDuration(value string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return time.ParseDuration(value)
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.Disabled {
		layer["disabled"] = cfg.Disabled
	}

	secrets := map[string]any{}
	putString(secrets, "chat_channel_secret", cfg.Secrets.ChatChannelSecret, includeZero)
	putString(secrets, "progress_api_key", cfg.Secrets.ProgressAPIKey, includeZero)
	if len(secrets) > 0 {
		layer["secrets"] = secrets
	}

	dispatch := map[string]any{}
	putString(dispatch, "owner", cfg.Dispatch.Owner, includeZero)
	putString(dispatch, "repo", cfg.Dispatch.Repo, includeZero)
	putString(dispatch, "token", cfg.Dispatch.Token, includeZero)
	putString(dispatch, "base_url", cfg.Dispatch.BaseURL, includeZero)
	if includeZero || cfg.Dispatch.Timeout > 0 {
		dispatch["timeout"] = cfg.Dispatch.Timeout
	}
	if len(dispatch) > 0 {
		layer["dispatch"] = dispatch
	}

	pseudonym := map[string]any{}
	putString(pseudonym, "key", cfg.Pseudonym.Key, includeZero)
	if includeZero || cfg.Pseudonym.Length > 0 {
		pseudonym["length"] = cfg.Pseudonym.Length
	}
	if len(pseudonym) > 0 {
		layer["pseudonym"] = pseudonym
	}

	store := map[string]any{}
	putString(store, "driver", cfg.Store.Driver, includeZero)
	putString(store, "dsn", cfg.Store.DSN, includeZero)
	if includeZero || cfg.Store.Debug {
		store["debug"] = cfg.Store.Debug
	}
	if includeZero || cfg.Store.CacheTTL > 0 {
		store["cache_ttl"] = cfg.Store.CacheTTL
	}
	if len(store) > 0 {
		layer["store"] = store
	}
	return layer
}

func putString(target map[string]any, key string, value string, includeZero bool) {
	if includeZero || strings.TrimSpace(value) != "" {
		target[key] = value
	}
}
