// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by campusbot packages.
//
// # Key Functions
//
// Files:
//   - WriteFileAtomic: crash-safe file writing with fsync and rename
//
// Text:
//   - ChipLabel: shortens long suggestion prompts for display
//   - FitWidth: width-aware truncation for terminal cells
//   - PadWidth: right-pads to a display width
//
// # Usage
//
//	err := util.WriteFileAtomic(path, data, 0600, 0700)
//	label := util.ChipLabel(prompt)
package util
