// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package moderation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// CLASSIFY TESTS
// =============================================================================

func TestClassify(t *testing.T) {
	m := New(DefaultRules())
	r := DefaultRules().Replies

	tests := []struct {
		name  string
		query string
		rule  Rule
		reply string
	}{
		{"empty", "", RuleEmpty, r.Empty},
		{"whitespace", "   \t\n ", RuleEmpty, r.Empty},
		{"profanity", "what the DAMN exam dates", RuleProfanity, r.Profanity},
		{"profanity substring", "is the scrapbook club open", RuleProfanity, r.Profanity},
		{"pronoun", "when do they publish results", RulePronoun, r.Pronoun},
		{"pronoun case", "What did HE say about fees", RulePronoun, r.Pronoun},
		{"hi", "hi", RuleGreeting, r.Greeting},
		{"hello bang", "Hello!", RuleGreeting, r.Greeting},
		{"ok", "okay.", RuleGreeting, r.Greeting},
		{"thanks", "Thank you?", RuleGreeting, r.Thanks},
		{"bye", "goodbye", RuleGreeting, r.Farewell},
		{"two words", "exam dates", RuleTooGeneric, r.TooGeneric},
		{"single letter", "a", RuleTooGeneric, r.TooGeneric},
		{"double punctuation", "hi!!", RuleTooGeneric, r.TooGeneric},
		{"repeat run", "whaaaaat is the fee", RuleGibberish, r.Gibberish},
		{"emoji only", "🎓 🎉 📚", RuleEmojiOnly, r.EmojiOnly},
		{"mostly emoji", "🎓🎓🎓🎓 🎉🎉🎉🎉 📚📚📚📚 go", RuleEmojiOnly, r.EmojiOnly},
		{"bot identity", "what is your name please", RuleBotIdentity, r.BotIdentity},
		{"out of scope", "tell me a joke now", RuleOutOfScope, r.OutOfScope},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := m.Classify(tc.query)
			assert.False(t, v.Allowed)
			assert.Equal(t, KindInline, v.Kind)
			assert.Equal(t, tc.rule, v.Rule)
			assert.Equal(t, tc.reply, v.Reply)
			assert.Zero(t, v.Lockout)
		})
	}
}

func TestClassify_TooLongIsToast(t *testing.T) {
	m := New(DefaultRules())

	v := m.Classify(strings.Repeat("x", 201))
	assert.False(t, v.Allowed)
	assert.Equal(t, KindToast, v.Kind)
	assert.Equal(t, RuleTooLong, v.Rule)
	assert.Equal(t, 3*time.Second, v.Lockout)
	assert.NotEmpty(t, v.Warning)
	assert.Empty(t, v.Reply)

	// 200 characters after trimming is still within the limit.
	v = m.Classify("  " + strings.Repeat("ab ", 66) + "ab  ")
	assert.NotEqual(t, RuleTooLong, v.Rule)

	// Length is counted in characters, not bytes.
	v = m.Classify(strings.Repeat("é", 150))
	assert.NotEqual(t, RuleTooLong, v.Rule)
}

func TestClassify_Allowed(t *testing.T) {
	m := New(DefaultRules())
	queries := []string{
		"when does the semester start",
		"What is the fee for the hostel in 2024?",
		"show cse past papers for 2023 🎓",
		"list the notices from this week",
	}
	for _, q := range queries {
		v := m.Classify(q)
		assert.True(t, v.Allowed, "query %q blocked by %s", q, v.Rule)
		assert.Equal(t, KindNone, v.Kind)
	}
}

func TestClassify_OrderFirstMatchWins(t *testing.T) {
	m := New(DefaultRules())

	// Profanity is checked before pronouns.
	assert.Equal(t, RuleProfanity, m.Classify("they said shit about exams").Rule)

	// Pronouns are checked before greetings and word count.
	assert.Equal(t, RulePronoun, m.Classify("them").Rule)

	// A bare link is one word, so the word-count check fires first.
	assert.Equal(t, RuleTooGeneric, m.Classify("https://uni.edu/results").Rule)
}

func TestClassify_LinkOnly(t *testing.T) {
	rules := DefaultRules()
	rules.MinWords = 1
	m := New(rules)

	for _, q := range []string{"https://uni.edu/results", "  www.example.com/a?b=c  "} {
		v := m.Classify(q)
		assert.Equal(t, RuleLink, v.Rule, q)
		assert.Equal(t, rules.Replies.Link, v.Reply)
	}
	assert.True(t, m.Classify("results at https://uni.edu").Allowed)
}

func TestClassify_Deterministic(t *testing.T) {
	m := New(DefaultRules())
	queries := []string{"", "hi", "exam dates", strings.Repeat("y", 300), "when does the semester start"}
	for _, q := range queries {
		first := m.Classify(q)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, m.Classify(q))
		}
	}
}

func TestClassify_RepeatRunIgnoresNewlines(t *testing.T) {
	assert.False(t, hasRepeatRun("ab\n\n\n\n\ncd", 5))
	assert.True(t, hasRepeatRun("zzzzz", 5))
	assert.False(t, hasRepeatRun("zzzz", 5))
}

func TestStripEmoji(t *testing.T) {
	assert.Equal(t, "hi  there", stripEmoji("hi 🎓 there"))
	assert.Equal(t, "", stripEmoji("👍🏽❤️"))
	assert.Equal(t, "2024 #1", stripEmoji("2024 #1"))
}

// =============================================================================
// RULES TESTS
// =============================================================================

func TestParseRules_KeepsDefaults(t *testing.T) {
	data := []byte(`
max_length = 120
profanity = ["heck"]

[replies]
greeting = "Hey! Ask me about campus."
`)
	rules, err := ParseRules(data)
	assert.NoError(t, err)
	assert.Equal(t, 120, rules.MaxLength)
	assert.Equal(t, 3, rules.LockoutSeconds)
	assert.Equal(t, []string{"heck"}, rules.Profanity)
	assert.Equal(t, DefaultRules().Pronouns, rules.Pronouns)
	assert.Equal(t, "Hey! Ask me about campus.", rules.Replies.Greeting)
	assert.Equal(t, DefaultRules().Replies.Thanks, rules.Replies.Thanks)

	m := New(rules)
	assert.Equal(t, RuleProfanity, m.Classify("what the heck is this").Rule)
	assert.Equal(t, "Hey! Ask me about campus.", m.Classify("hey").Reply)
}

func TestParseRules_Invalid(t *testing.T) {
	_, err := ParseRules([]byte("max_length = = 3"))
	assert.Error(t, err)
}

func TestRules_EmptyListDisablesCheck(t *testing.T) {
	rules := DefaultRules()
	rules.Pronouns = []string{}
	m := New(rules)
	assert.True(t, m.Classify("when do they publish results").Allowed)
}
