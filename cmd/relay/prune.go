package main

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-relay/adapters/gojob"
	"github.com/goliatone/go-relay/core"
	"github.com/urfave/cli/v3"
)

func retentionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:    "retention-ttl",
			Value:   30 * 24 * time.Hour,
			Sources: cli.EnvVars("RELAY_RETENTION_TTL"),
			Usage:   "Delete events older than this (0 keeps all)",
		},
		&cli.IntFlag{
			Name:    "retention-row-cap",
			Sources: cli.EnvVars("RELAY_RETENTION_ROW_CAP"),
			Usage:   "Keep at most this many events (0 disables the cap)",
		},
	}
}

func retentionPolicy(cmd *cli.Command) core.RetentionPolicy {
	return core.RetentionPolicy{
		TTL:    cmd.Duration("retention-ttl"),
		RowCap: int(cmd.Int("retention-row-cap")),
	}
}

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Apply the event retention policy once",
		Flags: retentionFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rt, err := buildWiring(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()
			if !rt.Service.EventStoreConfigured() {
				return fmt.Errorf("event store is not configured: set RELAY_DATABASE_DSN")
			}

			logger := rt.Provider.GetLogger("relay.retention")
			runner := gojob.NewPruneRunner(rt.Service, gojob.RetryPolicy{}, gojob.LoggingHook{Logger: logger})
			deleted, err := runner.Run(ctx, gojob.PruneMessage(retentionPolicy(cmd), rt.Service.Now()))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.Root().Writer, "deleted %d events\n", deleted)
			return err
		},
	}
}
