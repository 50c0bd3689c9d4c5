// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the zerolog logger used across campusbot.
//
// The TUI owns the terminal, so logs go to ~/.campusbot/campusbot.log as
// JSON lines. Line-mode commands run with --verbose add a console writer on
// stderr.
package logging
