package core

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func envLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorFactory == nil {
		t.Fatalf("expected default error factory")
	}
	if deps.ErrorMapper == nil {
		t.Fatalf("expected default error mapper")
	}
	if deps.ConfigProvider == nil {
		t.Fatalf("expected default config provider")
	}
	if deps.OptionsResolver == nil {
		t.Fatalf("expected default options resolver")
	}
	if deps.DispatchSink != nil {
		t.Fatalf("expected no default dispatch sink")
	}
	if got := svc.Config().ServiceName; got != DefaultServiceName {
		t.Fatalf("expected default config service_name=%s, got %q", DefaultServiceName, got)
	}
	if svc.Config().Disabled {
		t.Fatalf("expected relay enabled by default")
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	customFactory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	optionsResolver := &fixedOptionsResolver{cfg: Config{ServiceName: "resolved"}}
	sink := &recordingSink{}
	store := &memoryEventStore{}

	svc, err := NewService(Config{ServiceName: "runtime"},
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorFactory(customFactory),
		WithErrorMapper(customMapper),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
		WithDispatchSink(sink),
		WithEventStore(store),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.ConfigProvider != configProvider {
		t.Fatalf("expected custom config provider")
	}
	if deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected custom options resolver")
	}
	if deps.DispatchSink != sink {
		t.Fatalf("expected custom dispatch sink")
	}
	if deps.EventStore != store {
		t.Fatalf("expected custom event store")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected resolver output to win, got %q", got)
	}
	if got := deps.ErrorFactory("boom").Message; got != "custom:boom" {
		t.Fatalf("expected custom error factory, got %q", got)
	}
	if mapped := deps.ErrorMapper(errors.New("x")); !errors.Is(mapped, sentinel) {
		t.Fatalf("expected custom error mapper")
	}
}

func TestNewService_RuntimeConfigOverridesLoadedConfig(t *testing.T) {
	loader := mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"secrets": map[string]any{
			"chat_channel_secret": "chat-secret",
		},
	}}
	svc, err := NewService(Config{ServiceName: "from-runtime", Disabled: true},
		WithConfigProvider(NewCfgxConfigProvider(loader)),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime service name, got %q", cfg.ServiceName)
	}
	if !cfg.Disabled {
		t.Fatalf("expected runtime kill switch to be applied")
	}
	if cfg.Secrets.ChatChannelSecret != "chat-secret" {
		t.Fatalf("expected loaded chat secret, got %q", cfg.Secrets.ChatChannelSecret)
	}
}

func TestEnvConfigLoader_MapsRelayVariables(t *testing.T) {
	loader := EnvConfigLoader{Lookup: envLookup(map[string]string{
		"GH_OWNER":            "acme",
		"GH_REPO":             "workflows",
		"GH_PAT":              "ghp_123",
		"LINE_CHANNEL_SECRET": "line-secret",
		"MANUS_API_KEY":       "manus-key",
		"FEATURE_BOT_ENABLED": "false",
		"DISPATCH_TIMEOUT":    "3",
		"PSEUDONYM_LENGTH":    "24",
		"RELAY_DATABASE_DSN":  "",
	})}
	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if raw["disabled"] != true {
		t.Fatalf("expected FEATURE_BOT_ENABLED=false to engage kill switch, got %#v", raw["disabled"])
	}
	dispatch, ok := raw["dispatch"].(map[string]any)
	if !ok {
		t.Fatalf("expected dispatch section, got %#v", raw["dispatch"])
	}
	if dispatch["owner"] != "acme" || dispatch["repo"] != "workflows" || dispatch["token"] != "ghp_123" {
		t.Fatalf("unexpected dispatch section %#v", dispatch)
	}
	if dispatch["timeout"] != 3*time.Second {
		t.Fatalf("expected bare seconds timeout, got %#v", dispatch["timeout"])
	}
	secrets := raw["secrets"].(map[string]any)
	if secrets["chat_channel_secret"] != "line-secret" || secrets["progress_api_key"] != "manus-key" {
		t.Fatalf("unexpected secrets section %#v", secrets)
	}
	if raw["pseudonym"].(map[string]any)["length"] != 24 {
		t.Fatalf("expected pseudonym length 24, got %#v", raw["pseudonym"])
	}
	if _, ok := raw["store"]; ok {
		t.Fatalf("expected empty variables to be ignored, got %#v", raw["store"])
	}
}

func TestEnvConfigLoader_FeatureFlagOtherValuesKeepRelayEnabled(t *testing.T) {
	for _, value := range []string{"true", "1", "no"} {
		raw, err := EnvConfigLoader{Lookup: envLookup(map[string]string{
			"FEATURE_BOT_ENABLED": value,
		})}.LoadRaw(context.Background())
		if err != nil {
			t.Fatalf("load raw: %v", err)
		}
		if raw["disabled"] != false {
			t.Fatalf("expected %q to keep relay enabled, got %#v", value, raw["disabled"])
		}
	}
}

func TestEnvConfigLoader_RejectsMalformedNumbers(t *testing.T) {
	_, err := EnvConfigLoader{Lookup: envLookup(map[string]string{
		"PSEUDONYM_LENGTH": "sixteen",
	})}.LoadRaw(context.Background())
	if err == nil {
		t.Fatalf("expected malformed pseudonym length error")
	}
	_, err = EnvConfigLoader{Lookup: envLookup(map[string]string{
		"DISPATCH_TIMEOUT": "soon",
	})}.LoadRaw(context.Background())
	if err == nil {
		t.Fatalf("expected malformed dispatch timeout error")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{name: "defaults", mutate: func(*Config) {}, valid: true},
		{name: "missing service name", mutate: func(c *Config) { c.ServiceName = " " }},
		{name: "negative timeout", mutate: func(c *Config) { c.Dispatch.Timeout = -time.Second }},
		{name: "relative base url", mutate: func(c *Config) { c.Dispatch.BaseURL = "api.github.com" }},
		{name: "pseudonym too long", mutate: func(c *Config) { c.Pseudonym.Length = 65 }},
		{name: "full pseudonym", mutate: func(c *Config) { c.Pseudonym.Length = 64 }, valid: true},
		{name: "postgres alias", mutate: func(c *Config) { c.Store.Driver = "postgresql" }, valid: true},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "mysql" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.valid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.valid && err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestDispatchConfigConfigured(t *testing.T) {
	cfg := DispatchConfig{Owner: "acme", Repo: "workflows"}
	if cfg.Configured() {
		t.Fatalf("expected missing token to leave dispatch unconfigured")
	}
	cfg.Token = "ghp_123"
	if !cfg.Configured() {
		t.Fatalf("expected dispatch to be configured")
	}
}
