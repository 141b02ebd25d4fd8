package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goliatone/go-relay/adapters/gojob"
	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/inbound"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the webhook relay HTTP server",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Value:   ":8080",
				Sources: cli.EnvVars("RELAY_ADDR"),
				Usage:   "Server listen address",
			},
			&cli.StringFlag{
				Name:    "path",
				Value:   "/webhook",
				Sources: cli.EnvVars("RELAY_WEBHOOK_PATH"),
				Usage:   "Path that accepts webhook POSTs",
			},
			&cli.DurationFlag{
				Name:    "prune-interval",
				Sources: cli.EnvVars("RELAY_PRUNE_INTERVAL"),
				Usage:   "Run the event retention job on this interval (0 disables)",
			},
		}, retentionFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rt, err := buildWiring(ctx, cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			logger := rt.Provider.GetLogger("relay.server")
			handler := rt.Facade.Inbound()
			if handler == nil {
				return fmt.Errorf("inbound relay is not configured")
			}

			mux := http.NewServeMux()
			mux.Handle(cmd.String("path"), inbound.NewHTTPHandler(handler))
			mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})

			if interval := cmd.Duration("prune-interval"); interval > 0 {
				if !rt.Service.EventStoreConfigured() {
					logger.Warn("prune interval set without an event store; retention job disabled")
				} else {
					go runRetention(ctx, rt, retentionPolicy(cmd), interval)
				}
			}

			listener, err := net.Listen("tcp", cmd.String("addr"))
			if err != nil {
				return fmt.Errorf("listen %s: %w", cmd.String("addr"), err)
			}
			logger.Info("relay server started",
				"addr", listener.Addr().String(),
				"path", cmd.String("path"),
				"disabled", rt.Config.Disabled,
				"event_store", rt.Service.EventStoreConfigured(),
			)

			srv := &http.Server{
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

// runRetention runs the prune job every interval until ctx is done. A failed
// run is logged and picked up again on the next tick.
func runRetention(ctx context.Context, rt *wiring, policy core.RetentionPolicy, interval time.Duration) {
	logger := rt.Provider.GetLogger("relay.retention")
	runner := gojob.NewPruneRunner(rt.Service, gojob.RetryPolicy{}, gojob.LoggingHook{Logger: logger})
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := runner.Run(ctx, gojob.PruneMessage(policy, rt.Service.Now()))
			if err != nil {
				logger.Error("relay retention run failed", "error", err.Error())
				continue
			}
			logger.Info("relay retention run finished", "deleted", deleted)
		}
	}
}
