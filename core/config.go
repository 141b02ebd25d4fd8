package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultServiceName      = "relay"
	DefaultDispatchBaseURL  = "https://api.github.com"
	DefaultDispatchTimeout  = 10 * time.Second
	DefaultPseudonymLength  = 16
	MaxPseudonymLength      = 64
	DefaultEventCacheTTL    = time.Minute
	DefaultStoreDriver      = "sqlite3"
	DefaultStorePingTimeout = 5 * time.Second
)

type SecretsConfig struct {
	ChatChannelSecret string `koanf:"chat_channel_secret" mapstructure:"chat_channel_secret"`
	ProgressAPIKey    string `koanf:"progress_api_key" mapstructure:"progress_api_key"`
}

type DispatchConfig struct {
	Owner   string        `koanf:"owner" mapstructure:"owner"`
	Repo    string        `koanf:"repo" mapstructure:"repo"`
	Token   string        `koanf:"token" mapstructure:"token"`
	BaseURL string        `koanf:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

// Configured reports whether the downstream repository coordinates are set.
func (c DispatchConfig) Configured() bool {
	return strings.TrimSpace(c.Owner) != "" &&
		strings.TrimSpace(c.Repo) != "" &&
		strings.TrimSpace(c.Token) != ""
}

type PseudonymConfig struct {
	Key    string `koanf:"key" mapstructure:"key"`
	Length int    `koanf:"length" mapstructure:"length"`
}

type StoreConfig struct {
	Driver   string        `koanf:"driver" mapstructure:"driver"`
	DSN      string        `koanf:"dsn" mapstructure:"dsn"`
	Debug    bool          `koanf:"debug" mapstructure:"debug"`
	CacheTTL time.Duration `koanf:"cache_ttl" mapstructure:"cache_ttl"`
}

type Config struct {
	ServiceName string `koanf:"service_name" mapstructure:"service_name"`
	// Disabled engages the kill switch: every inbound request is refused.
	Disabled  bool            `koanf:"disabled" mapstructure:"disabled"`
	Secrets   SecretsConfig   `koanf:"secrets" mapstructure:"secrets"`
	Dispatch  DispatchConfig  `koanf:"dispatch" mapstructure:"dispatch"`
	Pseudonym PseudonymConfig `koanf:"pseudonym" mapstructure:"pseudonym"`
	Store     StoreConfig     `koanf:"store" mapstructure:"store"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: DefaultServiceName,
		Dispatch: DispatchConfig{
			BaseURL: DefaultDispatchBaseURL,
			Timeout: DefaultDispatchTimeout,
		},
		Pseudonym: PseudonymConfig{
			Length: DefaultPseudonymLength,
		},
		Store: StoreConfig{
			CacheTTL: DefaultEventCacheTTL,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Dispatch.Timeout < 0 {
		return fmt.Errorf("core: dispatch.timeout must not be negative")
	}
	if base := strings.TrimSpace(c.Dispatch.BaseURL); base != "" {
		parsed, err := url.Parse(base)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("core: dispatch.base_url %q is invalid", base)
		}
	}
	if c.Pseudonym.Length < 0 || c.Pseudonym.Length > MaxPseudonymLength {
		return fmt.Errorf("core: pseudonym.length must be between 0 and %d", MaxPseudonymLength)
	}
	switch NormalizeStoreDriver(c.Store.Driver) {
	case "", "sqlite3", "postgres":
	default:
		return fmt.Errorf("core: store.driver %q is not supported", c.Store.Driver)
	}
	if c.Store.CacheTTL < 0 {
		return fmt.Errorf("core: store.cache_ttl must not be negative")
	}
	return nil
}

// NormalizeStoreDriver maps driver aliases onto the database/sql driver names.
func NormalizeStoreDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "":
		return ""
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "postgres", "postgresql", "pg":
		return "postgres"
	default:
		return strings.ToLower(strings.TrimSpace(driver))
	}
}
