// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/campusbot/internal/answer"
	"github.com/jeranaias/campusbot/internal/config"
	"github.com/jeranaias/campusbot/internal/conversation"
	"github.com/jeranaias/campusbot/internal/events"
	"github.com/jeranaias/campusbot/internal/session"
	"github.com/jeranaias/campusbot/internal/ui/chat"
	"github.com/jeranaias/campusbot/internal/ui/styles"
)

const (
	historyFileName = "chat_history"
	feedbackTimeout = 15 * time.Second
	replSource      = "chat"
)

const chatHelp = `Commands:
  /new                 start a new session on every screen
  /like [message]      like the last answer
  /dislike [message]   dislike the last answer
  /suggest             list suggested questions
  /pick <n>            ask suggestion n (new sessions only)
  /screen [name]       show or switch the screen
  /help                show this help
  /quit                leave

Ctrl+C stops an answer while it streams.`

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of user input per Prompt call.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// linerReader is a readline-style prompt with persistent history.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader(historyFile string) *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	r := &linerReader{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history with owner-only permissions and restores the
// terminal.
func (r *linerReader) Close() error {
	if r.historyFile != "" && config.EnsureConfigDir() == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// scanReader reads lines from a non-terminal input such as a pipe.
type scanReader struct {
	scanner *bufio.Scanner
}

func newScanReader(in io.Reader) *scanReader {
	return &scanReader{scanner: bufio.NewScanner(in)}
}

func (r *scanReader) Prompt(string) (string, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), nil
	}
	if err := r.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (r *scanReader) Close() error { return nil }

// =============================================================================
// COMMAND
// =============================================================================

type chatOptions struct {
	screen   string
	markdown bool
}

func newChatCommand(app *App) *cobra.Command {
	var opts chatOptions
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat in line mode",
		Long: `Chat one line at a time. Answers stream as they arrive.

Type /help inside the session for commands. Input history is kept in
~/.campusbot/chat_history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.chat(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.screen, "screen", "s", "", "screen to start on")
	cmd.Flags().BoolVarP(&opts.markdown, "markdown", "m", false, "render answers as markdown once settled")
	return cmd
}

// repl is one line-mode chat session.
type repl struct {
	app      *App
	sess     *session.Session
	screen   string
	in       lineReader
	out      *printer
	msgs     *printer
	markdown bool
}

func (a *App) chat(ctx context.Context, opts chatOptions) error {
	screen, err := a.screenOrDefault(opts.screen)
	if err != nil {
		return err
	}
	sess, err := a.openSession()
	if err != nil {
		return err
	}
	defer sess.Close()

	var in lineReader
	if a.interactive() {
		var history string
		if dir, err := config.ConfigDir(); err == nil {
			history = filepath.Join(dir, historyFileName)
		}
		in = newLinerReader(history)
	} else {
		in = newScanReader(a.In)
	}
	defer in.Close()

	r := &repl{
		app:      a,
		sess:     sess,
		screen:   screen,
		in:       in,
		out:      newPrinter(a.Out),
		msgs:     newPrinter(a.Err),
		markdown: opts.markdown,
	}
	r.banner()
	return r.loop(ctx)
}

func (r *repl) machine() *conversation.Machine {
	m, _ := r.sess.Machine(r.screen)
	return m
}

func (r *repl) banner() {
	sc, _ := r.app.cfg.Screen(r.screen)
	r.out.line(r.out.title.Render(sc.Title))
	r.out.line(sc.Welcome)
	r.out.line(r.out.dim.Render("Type /help for commands."))
}

func (r *repl) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := r.waitLockout(ctx); err != nil {
			return nil
		}

		input, err := r.in.Prompt(r.out.prompt.Render(r.screen + "> "))
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, liner.ErrPromptAborted) {
				return err
			}
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := r.command(ctx, input)
			if err != nil {
				r.msgs.warn(events.Warning{Level: events.LevelError, Message: err.Error()})
			}
			if quit {
				return nil
			}
			continue
		}
		r.ask(ctx, input)
	}
}

// ask runs one exchange. Ctrl+C during the answer stops it.
func (r *repl) ask(ctx context.Context, query string) {
	askCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	ex, err := follow(askCtx, r.machine(), query, r.app.Out, r.msgs, !r.markdown)
	var rejected *RejectedError
	switch {
	case errors.As(err, &rejected):
		r.msgs.warn(events.Warning{Level: events.LevelError, Message: rejected.Reason})
		return
	case errors.Is(err, conversation.ErrInFlight), errors.Is(err, conversation.ErrLockedOut):
		return
	case errors.Is(err, errStopped):
	case err != nil:
		r.msgs.warn(events.Warning{Level: events.LevelError, Message: err.Error()})
		return
	}

	if r.markdown {
		r.app.printMarkdown(r.app.Out, ex.Assistant.ID, ex.Assistant.DisplayText())
	}
	if ex.Assistant.Stopped {
		r.out.line(r.out.dim.Render(styles.Indicators.Stopped))
	}
}

// waitLockout blocks until the screen accepts input again.
func (r *repl) waitLockout(ctx context.Context) error {
	wait := time.Until(r.machine().LockedUntil())
	if wait <= 0 {
		return nil
	}
	r.msgs.line(r.msgs.dim.Render(fmt.Sprintf("Please wait %ds...", int(wait.Round(time.Second)/time.Second))))
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	r.msgs.warn(events.Warning{Level: events.LevelSuccess, Message: conversation.DefaultConfig().LockoutEndedText})
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// command runs a slash command and reports whether the REPL should exit.
func (r *repl) command(ctx context.Context, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help", "/h", "/?":
		r.out.line(chatHelp)
	case "/new":
		r.sess.Bus().RequestNewSession(replSource)
		r.banner()
	case "/like":
		return false, r.feedback(ctx, answer.SentimentPositive, arg)
	case "/dislike":
		return false, r.feedback(ctx, answer.SentimentNegative, arg)
	case "/suggest":
		r.suggestions()
	case "/pick":
		return false, r.pick(ctx, arg)
	case "/screen":
		return false, r.switchScreen(arg)
	default:
		return false, &UsageError{Message: fmt.Sprintf("unknown command %s (try /help)", name)}
	}
	return false, nil
}

func (r *repl) feedback(ctx context.Context, sentiment answer.Sentiment, message string) error {
	ctx, cancel := context.WithTimeout(ctx, feedbackTimeout)
	defer cancel()
	_, err := r.sess.SendFeedback(ctx, r.screen, sentiment, message)
	switch {
	case errors.Is(err, session.ErrNothingToRate):
		r.msgs.warn(events.Warning{Level: events.LevelInfo, Message: chat.NothingToRateText})
	case err != nil:
		r.app.logger.Warn().Err(err).Msg("feedback_failed")
		r.msgs.warn(events.Warning{Level: events.LevelError, Message: chat.FeedbackFailedText})
	default:
		r.msgs.warn(events.Warning{Level: events.LevelSuccess, Message: chat.FeedbackAck(sentiment)})
	}
	return nil
}

func (r *repl) suggestions() {
	sc, _ := r.app.cfg.Screen(r.screen)
	if len(sc.Suggestions) == 0 {
		r.out.line(r.out.dim.Render("No suggestions on this screen."))
		return
	}
	for i, s := range sc.Suggestions {
		r.out.line(fmt.Sprintf("%s %s", r.out.label.Render(fmt.Sprintf("%2d.", i+1)), s))
	}
}

func (r *repl) pick(ctx context.Context, arg string) error {
	sc, _ := r.app.cfg.Screen(r.screen)
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(sc.Suggestions) {
		return &UsageError{Message: fmt.Sprintf("pick a suggestion between 1 and %d", len(sc.Suggestions))}
	}
	if r.machine().IsOpen() {
		return &UsageError{Message: "suggestions are only offered in a new session (use /new)"}
	}
	prompt := sc.Suggestions[n-1]
	r.out.line(r.out.prompt.Render(r.screen+"> ") + prompt)
	r.ask(ctx, prompt)
	return nil
}

func (r *repl) switchScreen(name string) error {
	if name == "" {
		for _, sc := range r.sess.Screens() {
			marker := "  "
			if sc.Name == r.screen {
				marker = "* "
			}
			r.out.line(marker + sc.Name + r.out.dim.Render("  "+sc.Title))
		}
		return nil
	}
	resolved, err := r.app.screenOrDefault(name)
	if err != nil {
		return err
	}
	r.screen = resolved
	r.banner()
	return nil
}
