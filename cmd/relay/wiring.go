package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	relay "github.com/goliatone/go-relay"
	"github.com/goliatone/go-relay/adapters/gologger"
	"github.com/goliatone/go-relay/core"
	sqlstore "github.com/goliatone/go-relay/store/sql"
	"github.com/goliatone/go-relay/transport"
	"github.com/urfave/cli/v3"
)

// wiring holds the configured service and the resources released on exit.
type wiring struct {
	Config   core.Config
	Service  *core.Service
	Facade   *relay.Facade
	Provider gologger.SlogProvider
	closers  []func() error
}

func (r *wiring) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func newSlogLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// buildWiring loads configuration from the environment and wires the
// dispatch sink and, when a DSN is set, the event store.
func buildWiring(ctx context.Context, cmd *cli.Command) (*wiring, error) {
	provider := gologger.SlogProvider{Logger: newSlogLogger(cmd.String("log-level"))}
	cfg, err := core.NewCfgxConfigProvider(core.NewEnvConfigLoader()).Load(ctx, core.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	rt := &wiring{Config: cfg, Provider: provider}
	opts := []core.Option{core.WithLoggerProvider(provider)}

	if cfg.Dispatch.Configured() {
		opts = append(opts, core.WithDispatchSink(transport.NewRepositoryDispatchSink(cfg.Dispatch, nil)))
	} else {
		provider.GetLogger("relay.cmd").Warn("dispatch sink is not configured; forwarding will fail")
	}

	if strings.TrimSpace(cfg.Store.DSN) != "" {
		store, closeStore, err := openEventStore(ctx, cfg.Store)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, closeStore)
		opts = append(opts, core.WithEventStore(store))
	}

	svc, err := core.NewService(cfg, opts...)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("new service: %w", err)
	}
	facade, err := relay.NewFacade(svc)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("new facade: %w", err)
	}
	rt.Service = svc
	rt.Facade = facade
	return rt, nil
}

func openEventStore(ctx context.Context, cfg core.StoreConfig) (core.EventStore, func() error, error) {
	client, err := sqlstore.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open event store: %w", err)
	}
	base, err := sqlstore.NewEventStoreFromPersistence(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	if cfg.CacheTTL <= 0 {
		return base, client.Close, nil
	}

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = cfg.CacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("new event cache: %w", err)
	}
	cached, err := sqlstore.NewCachedEventStore(base, cacheService)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return cached, client.Close, nil
}
