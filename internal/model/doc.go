// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for a question/answer conversation.
//
// A conversation is an ordered log of turns. Every user turn is followed by
// exactly one assistant turn, and at most one assistant turn is unsettled
// (pending or streaming) at any time.
//
// # Key Types
//
//   - Turn: one half of an exchange (user query or assistant answer)
//   - Log: append-only ordered turns, cleared only by Reset
//   - Status: pending, streaming, settled
//   - Source: why an assistant turn has its text (answer, moderation, fallback)
//
// # Usage
//
//	log := model.NewLog()
//	user := model.NewUserTurn("when does the semester start?")
//	reply := model.NewAssistantTurn()
//	log.Append(user, reply)
//
//	reply.BeginStreaming(answer)
//	reply.Reveal("The semester ")
//	reply.Finish()
//
// Log is not safe for concurrent use. The conversation machine owns it and
// hands out value copies through Snapshot.
package model
