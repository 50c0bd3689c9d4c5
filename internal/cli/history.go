// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/campusbot/internal/export"
	"github.com/jeranaias/campusbot/internal/storage"
)

const (
	historyTimeFormat = "2006-01-02 15:04"
	defaultListLimit  = 20
)

type historyExportOptions struct {
	format string
	screen string
	limit  int
	outDir string
}

type historyListOptions struct {
	screen string
	limit  int
	asJSON bool
}

func newHistoryCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse archived exchanges",
		Long: `Browse the exchanges archived in ~/.campusbot/history.db.

Every settled answer is archived while storage is enabled.`,
	}

	var opts historyListOptions
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent exchanges, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withArchive(func(a *storage.Archive) error {
				return app.historyList(cmd.Context(), a, opts)
			})
		},
	}
	list.Flags().StringVarP(&opts.screen, "screen", "s", "", "only this screen")
	list.Flags().IntVarP(&opts.limit, "limit", "n", defaultListLimit, "number of exchanges")
	list.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one exchange",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return &UsageError{Message: fmt.Sprintf("invalid id %q", args[0])}
			}
			return app.withArchive(func(a *storage.Archive) error {
				return app.historyShow(cmd.Context(), a, id)
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every archived exchange",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withArchive(func(a *storage.Archive) error {
				n, err := a.Count(cmd.Context())
				if err != nil {
					return err
				}
				if err := a.Clear(cmd.Context()); err != nil {
					return err
				}
				p := newPrinter(app.Out)
				p.line(p.success.Render("Cleared") + fmt.Sprintf(" %d exchanges", n))
				return nil
			})
		},
	}

	var exportOpts historyExportOptions
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write recent exchanges to a transcript file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withArchive(func(a *storage.Archive) error {
				return app.historyExport(cmd.Context(), a, exportOpts)
			})
		},
	}
	exportCmd.Flags().StringVarP(&exportOpts.format, "format", "f", string(export.FormatMarkdown), "markdown, json or html")
	exportCmd.Flags().StringVarP(&exportOpts.screen, "screen", "s", "", "only this screen")
	exportCmd.Flags().IntVarP(&exportOpts.limit, "limit", "n", 100, "number of exchanges")
	exportCmd.Flags().StringVarP(&exportOpts.outDir, "output", "o", ".", "output directory")

	cmd.AddCommand(list, show, clearCmd, exportCmd)
	return cmd
}

// withArchive opens the archive for the duration of fn.
func (a *App) withArchive(fn func(*storage.Archive) error) error {
	if !a.cfg.Storage.Enabled {
		newPrinter(a.Err).warn(warningf("storage is disabled; new exchanges are not archived"))
	}
	archive, err := storage.Open(storage.Config{
		Path:       a.cfg.Storage.Path,
		MaxRecords: a.cfg.Storage.MaxRecords,
	})
	if err != nil {
		return &CommandError{Command: "history", Action: "open", Reason: "archive", Err: err}
	}
	defer archive.Close()
	return fn(archive)
}

func (a *App) historyList(ctx context.Context, archive *storage.Archive, opts historyListOptions) error {
	screen := opts.screen
	if screen != "" {
		resolved, err := a.screenOrDefault(screen)
		if err != nil {
			return err
		}
		screen = resolved
	}
	exchanges, err := archive.Recent(ctx, screen, opts.limit)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		if exchanges == nil {
			exchanges = []storage.Exchange{}
		}
		return enc.Encode(exchanges)
	}

	p := newPrinter(a.Out)
	if len(exchanges) == 0 {
		p.line(p.dim.Render("No archived exchanges."))
		return nil
	}
	width := terminalWidth(a.Out) - 36
	for _, ex := range exchanges {
		mark := ""
		if ex.Stopped {
			mark = " " + p.dim.Render("[stopped]")
		}
		p.line(fmt.Sprintf("%s  %s  %s  %s%s",
			p.label.Render(fmt.Sprintf("%5d", ex.ID)),
			p.dim.Render(ex.SettledAt.Local().Format(historyTimeFormat)),
			p.info.Render(fmt.Sprintf("%-9s", ex.Screen)),
			ex.Preview(width),
			mark,
		))
	}
	return nil
}

func (a *App) historyShow(ctx context.Context, archive *storage.Archive, id int64) error {
	ex, err := archive.Get(ctx, id)
	if err != nil {
		return err
	}
	p := newPrinter(a.Out)
	p.field("Screen", ex.Screen, 10)
	p.field("Asked", ex.AskedAt.Local().Format(time.RFC1123), 10)
	p.field("Source", ex.Source, 10)
	if ex.Stopped {
		p.field("Stopped", "yes", 10)
	}
	p.line("")
	p.line(p.title.Render(ex.Query))
	a.printMarkdown(a.Out, "history-"+strconv.FormatInt(ex.ID, 10), ex.Answer)
	return nil
}

func (a *App) historyExport(ctx context.Context, archive *storage.Archive, opts historyExportOptions) error {
	exporter := export.ForFormat(export.Format(opts.format))
	if exporter == nil {
		return &UsageError{Message: fmt.Sprintf("unknown format %q (have %v)", opts.format, export.Formats())}
	}

	title := "campusbot"
	screen := opts.screen
	if screen != "" {
		resolved, err := a.screenOrDefault(screen)
		if err != nil {
			return err
		}
		screen = resolved
		if sc, ok := a.cfg.Screen(screen); ok && sc.Title != "" {
			title = sc.Title
		}
	}

	exchanges, err := archive.Recent(ctx, screen, opts.limit)
	if err != nil {
		return err
	}
	// Recent is newest first; transcripts read oldest first.
	for i, j := 0, len(exchanges)-1; i < j; i, j = i+1, j-1 {
		exchanges[i], exchanges[j] = exchanges[j], exchanges[i]
	}

	path, err := export.ToFile(export.Transcript{Title: title, Screen: screen, Exchanges: exchanges},
		exporter, export.Options{OutputDir: opts.outDir})
	if errors.Is(err, export.ErrEmpty) {
		return &CommandError{Command: "history", Action: "export", Reason: "archive is empty", Err: storage.ErrNotFound}
	}
	if err != nil {
		return err
	}
	p := newPrinter(a.Out)
	p.line(p.success.Render("Wrote") + " " + path)
	return nil
}
