// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/jeranaias/campusbot/internal/config"
)

const (
	secretKey = "service.secret"
	redacted  = "[REDACTED]"
)

func newConfigCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the configuration",
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return app.configShow(asJSON)
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of TOML")

	path := &cobra.Command{
		Use:         "path",
		Short:       "Print the config file location",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(*cobra.Command, []string) error {
			p, err := app.configFile()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.Out, p)
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a config file with the defaults",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(*cobra.Command, []string) error {
			return app.configInit(force)
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			v, err := app.cfg.Get(args[0])
			if err != nil {
				return &UsageError{Message: err.Error()}
			}
			if args[0] == secretKey && v != "" {
				v = redacted
			}
			fmt.Fprintln(app.Out, v)
			return nil
		},
	}

	set := &cobra.Command{
		Use:         "set <key> <value>",
		Short:       "Change one setting in the config file",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(_ *cobra.Command, args []string) error {
			return app.configSet(args[0], args[1])
		},
	}

	keys := &cobra.Command{
		Use:         "keys",
		Short:       "List the settable keys",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(*cobra.Command, []string) {
			for _, k := range config.Keys() {
				fmt.Fprintln(app.Out, k)
			}
		},
	}

	cmd.AddCommand(show, path, initCmd, get, set, keys)
	return cmd
}

// configFile is --config or the default TOML path.
func (a *App) configFile() (string, error) {
	if a.ConfigPath != "" {
		return a.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

func isJSONPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".json")
}

func (a *App) configShow(asJSON bool) error {
	if asJSON {
		fmt.Fprintln(a.Out, a.cfg.String())
		return nil
	}
	safe := a.cfg.Clone()
	if safe.Service.Secret != "" {
		safe.Service.Secret = redacted
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(safe); err != nil {
		return &CommandError{Command: "config", Action: "show", Reason: "encode", Err: err}
	}
	a.Out.Write(buf.Bytes())
	return nil
}

func (a *App) configInit(force bool) error {
	path, err := a.configFile()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return &UsageError{Message: fmt.Sprintf("%s already exists (use --force to overwrite)", path)}
	}
	cfg := config.Default()
	cfg.SetDefaults()
	if err := save(cfg, path); err != nil {
		return &CommandError{Command: "config", Action: "init", Reason: path, Err: err}
	}
	p := newPrinter(a.Out)
	p.line(p.success.Render("Wrote") + " " + path)
	return nil
}

// configSet edits the file itself, so environment overrides are not
// written back.
func (a *App) configSet(key, value string) error {
	path, err := a.configFile()
	if err != nil {
		return err
	}

	cfg := config.Default()
	switch _, statErr := os.Stat(path); {
	case statErr == nil:
		load := config.LoadTOML
		if isJSONPath(path) {
			load = config.LoadJSON
		}
		if err := load(cfg, path); err != nil {
			return &CommandError{Command: "config", Action: "set", Reason: "read " + path, Err: err}
		}
	case !errors.Is(statErr, fs.ErrNotExist):
		return &CommandError{Command: "config", Action: "set", Reason: "stat " + path, Err: statErr}
	}

	if err := cfg.Set(key, value); err != nil {
		return &UsageError{Message: err.Error()}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := save(cfg, path); err != nil {
		return &CommandError{Command: "config", Action: "set", Reason: path, Err: err}
	}

	shown := value
	if key == secretKey {
		shown = redacted
	}
	p := newPrinter(a.Out)
	p.line(p.success.Render("Set") + " " + key + " = " + shown)
	return nil
}

func save(cfg *config.Config, path string) error {
	if isJSONPath(path) {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}
