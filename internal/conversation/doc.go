// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation runs one chat screen's question/answer exchanges.
//
// Machine is the single writer of a screen's turn log. A submitted query is
// moderated, then either answered with a canned reply or sent to the answer
// service; a successful answer is revealed token by token through a
// stream.Streamer. Every change is published on an events.Bus so that any
// number of views can redraw from Snapshot.
//
// # Lifecycle of an exchange
//
//	Submit("when do exams start?")
//	  user turn (settled) + assistant turn (pending)
//	  service answers      -> assistant turn streaming, VisibleText grows
//	  last token revealed  -> assistant turn settled, ExchangeSettled published
//
// RequestCancelStreaming freezes the in-flight turn at its visible prefix.
// RequestNewSession clears the log; any late tick or service result that
// belongs to the old session is dropped.
//
// # Concurrency
//
// Service calls and reveal ticks arrive on their own goroutines. Each one
// re-enters the Machine under its mutex and checks the session generation and
// turn ID before touching the log. Events are published after the mutex is
// released.
package conversation
