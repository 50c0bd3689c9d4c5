// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package moderation gates user queries before they reach the answer service.
//
// Classify runs an ordered list of checks on the trimmed query and returns the
// first matching Verdict. Blocked queries either get an inline canned reply
// (shown as the assistant's answer) or a toast warning with a short input
// lockout. Every list, limit and reply text lives in Rules and can be loaded
// from TOML.
//
// # Check Order
//
//  1. empty query
//  2. too long (toast, lockout)
//  3. profanity
//  4. context pronouns
//  5. greeting, thanks or farewell
//  6. too few words
//  7. repeated characters
//  8. mostly emoji
//  9. questions about the bot itself
//  10. out-of-scope topics
//  11. a bare link
//
// # Usage
//
//	mod := moderation.New(moderation.DefaultRules())
//	v := mod.Classify("hi")
//	if !v.Allowed {
//	    fmt.Println(v.Reply)
//	}
//
// Watcher reloads a rules file when it changes and classifies with the most
// recent good rules.
package moderation
