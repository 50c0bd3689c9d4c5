// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package answer provides the HTTP client for the university answer service.
//
// Each chat screen posts {"query": "..."} to its own endpoint and receives
// {"response": ...}, where the response is a markdown string, an array of
// past-paper rows, or a string holding a JSON array of rows. Rows are turned
// into a markdown table with PapersTable.
//
// # Rate limits
//
// The service reports remaining quota in X-RateLimit-Remaining and answers
// 429 with Retry-After when exhausted. The client surfaces both through a
// NoticeHandler and classifies 429 as ErrTypeRateLimited. Requests are also
// paced locally with a token bucket.
//
// # Usage
//
//	client := answer.NewClient(answer.DefaultConfig(),
//	    answer.WithNoticeHandler(func(n answer.Notice) { show(n.Message) }))
//	text, err := client.Ask(ctx, answer.EndpointAssistant, "when do exams start?")
//
// Bind a client to one endpoint to satisfy the conversation machine:
//
//	asker := client.For(answer.EndpointPapers)
package answer
