// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage archives settled exchanges in a local SQLite database.
//
// The archive backs the `history` command. It is written to by the
// conversation machine after every settled exchange and pruned to a fixed
// number of rows.
//
// # Key Types
//
//   - Archive: SQLite-backed store (modernc.org/sqlite, no cgo)
//   - Exchange: one archived query and its answer
//
// # Usage
//
//	archive, err := storage.Open(storage.Config{Path: storage.DefaultPath()})
//	if err != nil {
//	    return err
//	}
//	defer archive.Close()
//
//	recent, err := archive.Recent(ctx, "", 20)
package storage
