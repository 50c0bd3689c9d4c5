// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the building blocks of the campusbot TUI:
// the header, turn rendering, suggestion chips, glamour markdown and
// non-blocking toasts.
//
// Components are plain values rendered against a *styles.Theme; the chat
// model owns their state.
package components
