// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the campusbot command line.
//
// # Commands
//
//   - campusbot            open the chat TUI (same as "tui")
//   - tui [--screen]       full-screen chat with all screens as tabs
//   - ask <query>          one question, answer streamed to stdout
//   - chat [--screen]      line-mode REPL with readline history
//   - config ...           show, init, get and set configuration
//   - history ...          list, show, clear and export archived exchanges
//   - stub                 run the local answer service
//   - version              print build information
//
// Global flags are --config, --verbose and --log-level. Errors are
// mapped to exit codes by ExitCode.
package cli
