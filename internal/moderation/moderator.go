// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package moderation

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// =============================================================================
// VERDICT
// =============================================================================

// Kind is how a blocked query is surfaced to the user.
type Kind string

const (
	// KindNone is used for allowed queries.
	KindNone Kind = ""
	// KindInline means the reply is shown as the assistant's answer.
	KindInline Kind = "inline"
	// KindToast means a transient warning is shown and no turns are created.
	KindToast Kind = "toast"
)

// Rule identifies which check produced a verdict.
type Rule string

const (
	RuleNone        Rule = ""
	RuleEmpty       Rule = "empty"
	RuleTooLong     Rule = "too_long"
	RuleProfanity   Rule = "profanity"
	RulePronoun     Rule = "pronoun"
	RuleGreeting    Rule = "greeting"
	RuleTooGeneric  Rule = "too_generic"
	RuleGibberish   Rule = "gibberish"
	RuleEmojiOnly   Rule = "emoji_only"
	RuleBotIdentity Rule = "bot_identity"
	RuleOutOfScope  Rule = "out_of_scope"
	RuleLink        Rule = "link"
)

// Verdict is the outcome of classifying one query.
type Verdict struct {
	Allowed bool

	// Reply is the canned assistant text for inline verdicts.
	Reply string

	// Warning is the toast text for toast verdicts.
	Warning string

	Kind Kind
	Rule Rule

	// Lockout is how long the caller should refuse new input.
	Lockout time.Duration
}

// Allow is the verdict for a query that may reach the answer service.
func Allow() Verdict {
	return Verdict{Allowed: true}
}

func inline(rule Rule, reply string) Verdict {
	return Verdict{Reply: reply, Kind: KindInline, Rule: rule}
}

// Classifier decides whether a query may be sent.
type Classifier interface {
	Classify(raw string) Verdict
}

// =============================================================================
// MODERATOR
// =============================================================================

var linkOnlyPattern = regexp.MustCompile(`(?i)^\s*(https?://|www\.)\S+\s*$`)

// Moderator applies a fixed Rules value. It holds no mutable state and is
// safe for concurrent use.
type Moderator struct {
	rules    Rules
	pronouns *regexp.Regexp
	replies  map[string]string
}

// New creates a Moderator. Zero-valued fields in rules take their defaults.
func New(rules Rules) *Moderator {
	rules = rules.WithDefaults()
	m := &Moderator{
		rules:   rules,
		replies: make(map[string]string),
	}

	if len(rules.Pronouns) > 0 {
		quoted := make([]string, len(rules.Pronouns))
		for i, p := range rules.Pronouns {
			quoted[i] = regexp.QuoteMeta(p)
		}
		m.pronouns = regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	}

	add := func(words []string, reply string) {
		for _, w := range words {
			m.replies[fold(strings.TrimSpace(w))] = reply
		}
	}
	add(rules.Greetings, rules.Replies.Greeting)
	add(rules.Farewells, rules.Replies.Farewell)
	add(rules.Thanks, rules.Replies.Thanks)
	return m
}

// Rules returns the rules in effect.
func (m *Moderator) Rules() Rules {
	return m.rules
}

// Classify checks the trimmed query in order and returns the first match.
func (m *Moderator) Classify(raw string) Verdict {
	r := m.rules
	query := strings.TrimSpace(raw)
	folded := fold(query)

	if query == "" {
		return inline(RuleEmpty, r.Replies.Empty)
	}

	if utf8.RuneCountInString(query) > r.MaxLength {
		return Verdict{
			Warning: r.Replies.TooLong,
			Kind:    KindToast,
			Rule:    RuleTooLong,
			Lockout: r.Lockout(),
		}
	}

	if containsAny(folded, r.Profanity) {
		return inline(RuleProfanity, r.Replies.Profanity)
	}

	if m.pronouns != nil && m.pronouns.MatchString(query) {
		return inline(RulePronoun, r.Replies.Pronoun)
	}

	if reply, ok := m.cannedReply(folded); ok {
		return inline(RuleGreeting, reply)
	}

	if len(strings.Fields(query)) < r.MinWords {
		return inline(RuleTooGeneric, r.Replies.TooGeneric)
	}

	if hasRepeatRun(query, r.RepeatRun) {
		return inline(RuleGibberish, r.Replies.Gibberish)
	}

	text := strings.TrimSpace(stripEmoji(query))
	textLen := utf8.RuneCountInString(text)
	if textLen == 0 || float64(textLen) < float64(utf8.RuneCountInString(query))*r.MinTextRatio {
		return inline(RuleEmojiOnly, r.Replies.EmojiOnly)
	}

	if containsAny(folded, r.BotIdentity) {
		return inline(RuleBotIdentity, r.Replies.BotIdentity)
	}

	if containsAny(folded, r.OutOfScope) {
		return inline(RuleOutOfScope, r.Replies.OutOfScope)
	}

	if linkOnlyPattern.MatchString(query) {
		return inline(RuleLink, r.Replies.Link)
	}

	return Allow()
}

// cannedReply matches the whole query against the greeting, thanks and
// farewell templates, allowing one trailing '.', '!' or '?'.
func (m *Moderator) cannedReply(folded string) (string, bool) {
	if reply, ok := m.replies[folded]; ok {
		return reply, true
	}
	if n := len(folded); n > 0 && strings.ContainsRune(".!?", rune(folded[n-1])) {
		reply, ok := m.replies[folded[:n-1]]
		return reply, ok
	}
	return "", false
}

// =============================================================================
// HELPERS
// =============================================================================

// fold case-folds s. A Caser is not safe for concurrent use, so one is made
// per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

func containsAny(folded string, words []string) bool {
	for _, w := range words {
		if w == "" {
			continue
		}
		if strings.Contains(folded, fold(w)) {
			return true
		}
	}
	return false
}

// hasRepeatRun reports whether s has n or more identical consecutive
// characters on one line.
func hasRepeatRun(s string, n int) bool {
	var prev rune = -1
	run := 0
	for _, r := range s {
		if r == '\n' {
			prev, run = -1, 0
			continue
		}
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n {
			return true
		}
	}
	return false
}
