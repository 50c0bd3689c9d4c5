// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "regexp"

var (
	// linkPattern matches a complete inline markdown link: [label](target).
	linkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

	// unitPattern matches a word with its surrounding whitespace, or a run of
	// whitespace with no word. Leading whitespace is only absorbed at the
	// start of a segment because each word consumes the whitespace after it.
	unitPattern = regexp.MustCompile(`\s*\S+\s*|\s+`)
)

// Tokenize splits text into reveal units.
// Each complete markdown link is a single unit. Everything else becomes
// word-plus-trailing-whitespace units. Concatenating the result yields text.
func Tokenize(text string) []string {
	if text == "" {
		return []string{}
	}

	tokens := make([]string, 0, len(text)/5+1)
	cursor := 0
	for _, loc := range linkPattern.FindAllStringIndex(text, -1) {
		tokens = appendWords(tokens, text[cursor:loc[0]])
		tokens = append(tokens, text[loc[0]:loc[1]])
		cursor = loc[1]
	}
	return appendWords(tokens, text[cursor:])
}

func appendWords(tokens []string, segment string) []string {
	if segment == "" {
		return tokens
	}
	return append(tokens, unitPattern.FindAllString(segment, -1)...)
}
