// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"net"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jeranaias/campusbot/internal/logging"
	"github.com/jeranaias/campusbot/internal/server"
)

func newStubCommand(app *App) *cobra.Command {
	cfg := server.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run the local answer service",
		Long: `Run a local answer service that speaks the same protocol as the
hosted one, with canned campus knowledge. Point service.base_url at it:

  campusbot stub &
  campusbot config set service.base_url http://127.0.0.1:8000`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return app.runStub(ctx, cfg, nil)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	flags.StringVar(&cfg.Secret, "secret", "", "require this x-vercel-secret header")
	flags.IntVar(&cfg.RequestsPerMinute, "rpm", cfg.RequestsPerMinute, "requests per minute per client (0 = unlimited)")
	flags.IntVar(&cfg.Burst, "burst", cfg.Burst, "burst size per client")
	flags.DurationVar(&cfg.Latency, "latency", 0, "delay every answer, e.g. 800ms")
	flags.BoolVar(&cfg.RowsAsString, "rows-as-string", false, "send paper rows as a JSON string")
	return cmd
}

// runStub serves until ctx is done. A nil listener listens on cfg.Addr.
func (a *App) runStub(ctx context.Context, cfg server.Config, ln net.Listener) error {
	srv := server.New(cfg, server.WithLogger(logging.Component(a.logger, "stub")))

	a.logger.Info().
		Str("addr", cfg.Addr).
		Int("rpm", cfg.RequestsPerMinute).
		Int("burst", cfg.Burst).
		Dur("latency", cfg.Latency).
		Bool("secret", cfg.Secret != "").
		Msg("stub_config")

	var err error
	if ln != nil {
		err = srv.Serve(ctx, ln)
	} else {
		err = srv.ListenAndServe(ctx)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
