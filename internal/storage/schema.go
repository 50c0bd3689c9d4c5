// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

const schemaSQL = `
CREATE TABLE IF NOT EXISTS exchanges (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    screen TEXT NOT NULL,
    user_turn_id TEXT NOT NULL,
    assistant_turn_id TEXT NOT NULL UNIQUE,
    query TEXT NOT NULL,
    answer TEXT NOT NULL,
    source TEXT NOT NULL,       -- answer, moderation, fallback
    stopped INTEGER NOT NULL DEFAULT 0,
    asked_at INTEGER NOT NULL,  -- Unix nanoseconds
    settled_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_exchanges_screen ON exchanges(screen);
CREATE INDEX IF NOT EXISTS idx_exchanges_settled_at ON exchanges(settled_at);
`
