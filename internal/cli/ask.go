// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/campusbot/internal/ui/components"
	"github.com/jeranaias/campusbot/internal/ui/styles"
)

type askOptions struct {
	screen   string
	markdown bool
}

func newAskCommand(app *App) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [flags] <query...>",
		Short: "Ask one question and print the answer",
		Long: `Ask one question on a screen and print the answer as it streams.

With --markdown the answer is printed once it settles, rendered for the
terminal. Press Ctrl+C to stop the answer where it is.`,
		Example: `  campusbot ask "Tell me about DTU's history"
  campusbot ask --screen papers "Data Structures papers"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return app.ask(ctx, opts, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVarP(&opts.screen, "screen", "s", "", "screen to ask on")
	cmd.Flags().BoolVarP(&opts.markdown, "markdown", "m", false, "render the answer as markdown")
	return cmd
}

func (a *App) ask(ctx context.Context, opts askOptions, query string) error {
	screen, err := a.screenOrDefault(opts.screen)
	if err != nil {
		return err
	}
	sess, err := a.openSession(screen)
	if err != nil {
		return err
	}
	defer sess.Close()

	m, _ := sess.Machine(screen)
	ex, err := follow(ctx, m, query, a.Out, newPrinter(a.Err), !opts.markdown)
	if err != nil && !errors.Is(err, errStopped) {
		return err
	}
	if opts.markdown {
		a.printMarkdown(a.Out, ex.Assistant.ID, ex.Assistant.DisplayText())
	}
	return err
}

// printMarkdown renders text with glamour when w is a terminal.
func (a *App) printMarkdown(w io.Writer, key, text string) {
	theme := styles.NewTheme(a.cfg.UI.Theme)
	md := components.NewMarkdown(theme.GlamourStyle(), terminalWidth(w)-2, isTerminal(w))
	io.WriteString(w, strings.TrimRight(md.Render(key, text), "\n")+"\n")
}
