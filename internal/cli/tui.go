// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jeranaias/campusbot/internal/ui/chat"
	"github.com/jeranaias/campusbot/internal/ui/styles"
)

func newTUICommand(app *App) *cobra.Command {
	var screen string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the full-screen chat",
		Long: `Open the full-screen chat with every configured screen as a tab.

Keys: enter asks, esc stops an answer, tab switches screens, ctrl+n
starts a new session, ctrl+l / ctrl+k like or dislike the last answer,
alt+1..4 ask a suggestion and ctrl+r shows more suggestions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runTUI(cmd.Context(), screen)
		},
	}
	cmd.Flags().StringVarP(&screen, "screen", "s", "", "screen to show first")
	return cmd
}

func (a *App) runTUI(ctx context.Context, screen string) error {
	if !a.interactive() {
		return &TTYRequiredError{Action: "open the chat screen"}
	}
	screen, err := a.screenOrDefault(screen)
	if err != nil {
		return err
	}

	sess, err := a.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	a.logger.Info().Str("screen", screen).Msg("tui_start")
	return chat.Run(ctx, sess, chat.Options{
		Theme:    styles.NewTheme(a.cfg.UI.Theme),
		Screen:   screen,
		Markdown: a.cfg.UI.Markdown,
	})
}
