// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/campusbot/internal/config"
	"github.com/jeranaias/campusbot/internal/logging"
	"github.com/jeranaias/campusbot/internal/session"
)

// Build information, set with -ldflags.
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

// skipConfig marks commands that run without loading the config file.
const skipConfig = "skip-config"

// App carries the I/O streams, global flags and per-run state shared by
// every command.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	ConfigPath string
	Verbose    bool
	LogLevel   string

	cfg       *config.Config
	logger    zerolog.Logger
	logCloser io.Closer

	// interactive reports whether In and Out are terminals.
	interactive func() bool
	// sessionOpts are appended to every session.Open call.
	sessionOpts []session.Option
}

// NewApp returns an App on the process streams.
func NewApp() *App {
	return &App{
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		logger:      zerolog.Nop(),
		interactive: func() bool { return IsTTY() && IsStdoutTTY() },
	}
}

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "campusbot",
		Short: "Chat with the DTU campus assistant",
		Long: `campusbot is a terminal client for the DTU campus assistant.

Run it without arguments to open the chat TUI. Use "ask" for a single
question or "chat" for a line-mode session.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: app.before,
		PersistentPostRun: func(*cobra.Command, []string) { app.after() },
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runTUI(cmd.Context(), "")
		},
	}
	root.SetIn(app.In)
	root.SetOut(app.Out)
	root.SetErr(app.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&app.ConfigPath, "config", app.ConfigPath, "config file (default ~/.campusbot/config.toml)")
	flags.BoolVarP(&app.Verbose, "verbose", "v", app.Verbose, "also log to stderr")
	flags.StringVar(&app.LogLevel, "log-level", app.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(
		newTUICommand(app),
		newAskCommand(app),
		newChatCommand(app),
		newConfigCommand(app),
		newHistoryCommand(app),
		newStubCommand(app),
		newVersionCommand(app),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	app := NewApp()
	root := NewRootCommand(app)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	app.after()
	if err != nil {
		p := newPrinter(app.Err)
		p.line(p.errorS.Render("Error:") + " " + err.Error())
		return ExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// SETUP AND TEARDOWN
// =============================================================================

func (a *App) before(cmd *cobra.Command, _ []string) error {
	a.after()
	if cmd.Annotations[skipConfig] == "" {
		if err := a.loadConfig(); err != nil {
			return err
		}
	}
	return a.setupLogging(cmd)
}

func (a *App) after() {
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

// loadConfig reads the config once. A broken default file is reported and
// the defaults are used; a broken --config file is an error.
func (a *App) loadConfig() error {
	if a.cfg != nil {
		return nil
	}
	if a.ConfigPath != "" {
		cfg, err := config.LoadFromPath(a.ConfigPath)
		if err != nil {
			return &CommandError{Command: "config", Action: "load", Reason: a.ConfigPath, Err: err}
		}
		a.cfg = cfg
		return nil
	}
	cfg, err := config.Load()
	if cfg == nil {
		return &CommandError{Command: "config", Action: "load", Reason: "invalid configuration", Err: err}
	}
	if err != nil {
		newPrinter(a.Err).warn(warningf("%v; using defaults", err))
	}
	a.cfg = cfg
	return nil
}

// setupLogging opens the log file. The TUI owns the terminal, so console
// logging is only added for line-mode commands with --verbose, and always
// for the stub server.
func (a *App) setupLogging(cmd *cobra.Command) error {
	opts := logging.Options{Level: a.LogLevel}
	if a.cfg != nil {
		if opts.Level == "" {
			opts.Level = a.cfg.Logging.Level
		}
		opts.Path = a.cfg.Logging.Path
	}
	if a.Verbose && opts.Level == "" {
		opts.Level = "debug"
	}
	if a.Verbose || cmd.Name() == "stub" {
		opts.Console = a.Err
	}
	if cmd.Annotations[skipConfig] != "" && opts.Console == nil {
		opts.Discard = true
	}

	logger, closer, err := logging.New(opts)
	if err != nil {
		// Logging is best effort; the command still runs.
		logger, closer = zerolog.Nop(), nil
		if a.Verbose {
			fmt.Fprintf(a.Err, "logging disabled: %v\n", err)
		}
	}
	a.logger = logger
	a.logCloser = closer
	logging.Install(logger)
	return nil
}

// openSession opens a session on the loaded config, limited to screens
// when any are given.
func (a *App) openSession(screens ...string) (*session.Session, error) {
	opts := []session.Option{session.WithLogger(logging.Component(a.logger, "session"))}
	if len(screens) > 0 {
		opts = append(opts, session.WithScreens(screens...))
	}
	opts = append(opts, a.sessionOpts...)
	s, err := session.Open(a.cfg, opts...)
	if err != nil {
		return nil, &CommandError{Command: "session", Action: "open", Reason: "could not start", Err: err}
	}
	return s, nil
}

// screenOrDefault resolves an empty --screen flag to the configured default.
func (a *App) screenOrDefault(name string) (string, error) {
	if name == "" {
		name = a.cfg.UI.DefaultScreen
	}
	if name == "" {
		if names := a.cfg.ScreenNames(); len(names) > 0 {
			name = names[0]
		}
	}
	sc, ok := a.cfg.Screen(name)
	if !ok {
		return "", &UsageError{Message: fmt.Sprintf("unknown screen %q (have %v)", name, a.cfg.ScreenNames())}
	}
	return sc.Name, nil
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(app.Out, "campusbot %s (%s)\n", Version, GitCommit)
		},
	}
}
