// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package answer

// Format says how an endpoint's response becomes answer text.
type Format string

const (
	// FormatText treats the response as markdown.
	FormatText Format = "text"
	// FormatPapers treats the response as past-paper rows.
	FormatPapers Format = "papers"
)

// Endpoint is a path on the answer service and how to read its response.
type Endpoint struct {
	Name   string
	Path   string
	Format Format
}

// Built-in endpoints, one per chat screen.
var (
	EndpointAssistant = Endpoint{Name: "assistant", Path: "/chat/result", Format: FormatText}
	EndpointNotices   = Endpoint{Name: "notices", Path: "/chat/information", Format: FormatText}
	EndpointPapers    = Endpoint{Name: "papers", Path: "/api/pyq_papers", Format: FormatPapers}
)

// DefaultFeedbackPath is where feedback is posted.
const DefaultFeedbackPath = "/api/feedback"
