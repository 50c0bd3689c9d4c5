// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the bubbletea model of the campusbot TUI.
//
// The model is a bus subscriber: it never edits a turn log. User actions
// become calls on the active screen's conversation.Machine (Submit,
// RequestCancelStreaming, RequestNewSession), and every bus event makes
// the model re-read the affected machine's snapshot.
//
// # Screens
//
// Each configured screen has its own machine, welcome line and suggestion
// chips. Tab cycles through screens; a screen keeps its conversation while
// another one is shown.
//
// # Key Bindings
//
//	Enter      submit the query (or send feedback)
//	Esc        stop the answer being revealed, or close the feedback form
//	Ctrl+N     start a new session on every screen
//	Tab        next screen (Shift+Tab previous)
//	Alt+1..4   ask a suggested question
//	Ctrl+R     more suggestions
//	Ctrl+L/K   like or dislike the latest answer
//	Ctrl+X     dismiss the newest toast
//	Ctrl+C     stop the answer, or quit when idle
package chat
