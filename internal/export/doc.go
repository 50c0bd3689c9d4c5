// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes archived exchanges to files.
//
// # Supported Formats
//
//   - markdown: one section per exchange, answers kept as written
//   - json: the archived records, indented
//   - html: a standalone page with answers rendered by goldmark
//
// # Usage
//
//	exchanges, _ := archive.Recent(ctx, "", 50)
//	path, err := export.ToFile(export.Transcript{Title: "DTU Assistant", Exchanges: exchanges},
//	    export.ForFormat(export.FormatMarkdown), export.Options{OutputDir: "."})
package export
