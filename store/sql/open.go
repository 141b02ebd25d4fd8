package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/goliatone/go-relay/core"
	relaymigrations "github.com/goliatone/go-relay/migrations"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"

	defaultPingTimeout = 5 * time.Second
)

// PersistenceConfig adapts core.StoreConfig to the persistence client.
type PersistenceConfig struct {
	Driver      string
	DSN         string
	Debug       bool
	PingTimeout time.Duration
}

func NewPersistenceConfig(cfg core.StoreConfig) PersistenceConfig {
	return PersistenceConfig{
		Driver:      normalizeDriver(cfg.Driver),
		DSN:         strings.TrimSpace(cfg.DSN),
		Debug:       cfg.Debug,
		PingTimeout: defaultPingTimeout,
	}
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	return c.Driver
}

func (c PersistenceConfig) GetServer() string {
	return c.DSN
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return defaultPingTimeout
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	return core.DefaultServiceName
}

// Open connects to the configured database, applies the relay migrations
// for its dialect and returns the persistence client.
func Open(ctx context.Context, cfg core.StoreConfig) (*persistence.Client, error) {
	pcfg := NewPersistenceConfig(cfg)
	if pcfg.DSN == "" {
		return nil, fmt.Errorf("sqlstore: store dsn is required")
	}
	dialect, migrationDialect, err := resolveDialect(pcfg.Driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(pcfg.Driver, pcfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", pcfg.Driver, err)
	}
	if pcfg.Driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(pcfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlstore: new persistence client: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	_, err = relaymigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != migrationDialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, relaymigrations.WithValidationTargets(migrationDialect))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return client, nil
}

func NewEventStoreFromPersistence(client *persistence.Client) (*EventStore, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewEventStore(db)
}

func resolveDialect(driver string) (schema.Dialect, string, error) {
	switch normalizeDriver(driver) {
	case DriverSQLite:
		return sqlitedialect.New(), relaymigrations.DialectSQLite, nil
	case DriverPostgres:
		return pgdialect.New(), relaymigrations.DialectPostgres, nil
	default:
		return nil, "", fmt.Errorf("sqlstore: unsupported store driver %q", driver)
	}
}

// normalizeDriver defaults an empty driver to sqlite.
func normalizeDriver(driver string) string {
	if normalized := core.NormalizeStoreDriver(driver); normalized != "" {
		return normalized
	}
	return DriverSQLite
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
