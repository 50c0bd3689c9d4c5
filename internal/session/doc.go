// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session assembles a running campusbot session from configuration:
// the event bus, the answer service client, the input moderator, the
// exchange archive and one conversation machine per chat screen.
//
// Front ends (the TUI, the chat REPL, the ask command) open a Session, drive
// its machines, and subscribe to its bus.
//
//	s, err := session.Open(cfg, session.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//	m, _ := s.Machine("assistant")
//	m.Submit(ctx, "Who is HOD of IT?")
package session
