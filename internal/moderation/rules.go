// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package moderation

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// RULES
// =============================================================================

// Rules holds every tunable list, limit and reply used by the Moderator.
type Rules struct {
	// MaxLength is the longest accepted trimmed query, in characters.
	MaxLength int `toml:"max_length" json:"max_length"`

	// LockoutSeconds is how long input stays locked after a too-long query.
	LockoutSeconds int `toml:"lockout_seconds" json:"lockout_seconds"`

	// MinWords is the fewest words a real question may have.
	MinWords int `toml:"min_words" json:"min_words"`

	// RepeatRun is the length of an identical-character run treated as gibberish.
	RepeatRun int `toml:"repeat_run" json:"repeat_run"`

	// MinTextRatio is the smallest share of non-emoji text a query may have.
	MinTextRatio float64 `toml:"min_text_ratio" json:"min_text_ratio"`

	Profanity   []string `toml:"profanity" json:"profanity"`
	Pronouns    []string `toml:"pronouns" json:"pronouns"`
	Greetings   []string `toml:"greetings" json:"greetings"`
	Thanks      []string `toml:"thanks" json:"thanks"`
	Farewells   []string `toml:"farewells" json:"farewells"`
	BotIdentity []string `toml:"bot_identity" json:"bot_identity"`
	OutOfScope  []string `toml:"out_of_scope" json:"out_of_scope"`

	Replies Replies `toml:"replies" json:"replies"`
}

// Replies holds the canned texts for each check.
type Replies struct {
	Empty       string `toml:"empty" json:"empty"`
	TooLong     string `toml:"too_long" json:"too_long"`
	Profanity   string `toml:"profanity" json:"profanity"`
	Pronoun     string `toml:"pronoun" json:"pronoun"`
	Greeting    string `toml:"greeting" json:"greeting"`
	Thanks      string `toml:"thanks" json:"thanks"`
	Farewell    string `toml:"farewell" json:"farewell"`
	TooGeneric  string `toml:"too_generic" json:"too_generic"`
	Gibberish   string `toml:"gibberish" json:"gibberish"`
	EmojiOnly   string `toml:"emoji_only" json:"emoji_only"`
	BotIdentity string `toml:"bot_identity" json:"bot_identity"`
	OutOfScope  string `toml:"out_of_scope" json:"out_of_scope"`
	Link        string `toml:"link" json:"link"`
}

// DefaultRules returns the built-in rule set.
func DefaultRules() Rules {
	return Rules{
		MaxLength:      200,
		LockoutSeconds: 3,
		MinWords:       3,
		RepeatRun:      5,
		MinTextRatio:   0.3,
		Profanity:      []string{"damn", "shit", "fuck", "asshole", "bitch", "crap"},
		Pronouns:       []string{"they", "them", "their", "he", "him", "his", "she", "her", "hers", "these", "those"},
		Greetings:      []string{"hi", "hello", "hey", "ok", "okay"},
		Thanks:         []string{"thanks", "thank you"},
		Farewells:      []string{"bye", "goodbye"},
		BotIdentity:    []string{"your name", "who are you", "who created you", "what are you"},
		OutOfScope:     []string{"weather", "joke", "recipe", "movie", "capital of", "translate", "who won"},
		Replies: Replies{
			Empty:       "Please enter a question about the university.",
			TooLong:     "Please keep your questions under 200 characters for better responses.",
			Profanity:   "I cannot process requests containing inappropriate language. Please be respectful.",
			Pronoun:     "I cannot answer queries with pronouns as I don't maintain conversation context. Please provide a complete question with specific details.",
			Greeting:    "Hello! How can I help you with university information today?",
			Thanks:      "You're welcome! What else would you like to know about the university?",
			Farewell:    "Goodbye! Feel free to return if you have more questions about the university.",
			TooGeneric:  "Your query is too generic. Please provide more details about what you're looking for.",
			Gibberish:   "Sorry, I couldn't understand that. Please ask a clear question about the university.",
			EmojiOnly:   "Please use words to ask your question about the university.",
			BotIdentity: "I am a chatbot designed to help with information about the university, including results, notices, and past questions.",
			OutOfScope:  "My apologies, I can only answer questions related to university data like results, notices, and past questions.",
			Link:        "I cannot process links directly. Please ask your question using text.",
		},
	}
}

// Lockout returns the input lockout applied after a too-long query.
func (r Rules) Lockout() time.Duration {
	return time.Duration(r.LockoutSeconds) * time.Second
}

// WithDefaults fills zero-valued fields from DefaultRules.
// A nil list takes the default; an explicitly empty list disables its check.
func (r Rules) WithDefaults() Rules {
	d := DefaultRules()
	if r.MaxLength <= 0 {
		r.MaxLength = d.MaxLength
	}
	if r.LockoutSeconds < 0 {
		r.LockoutSeconds = 0
	}
	if r.MinWords <= 0 {
		r.MinWords = d.MinWords
	}
	if r.RepeatRun <= 1 {
		r.RepeatRun = d.RepeatRun
	}
	if r.MinTextRatio <= 0 || r.MinTextRatio > 1 {
		r.MinTextRatio = d.MinTextRatio
	}

	lists := []struct {
		dst *[]string
		def []string
	}{
		{&r.Profanity, d.Profanity},
		{&r.Pronouns, d.Pronouns},
		{&r.Greetings, d.Greetings},
		{&r.Thanks, d.Thanks},
		{&r.Farewells, d.Farewells},
		{&r.BotIdentity, d.BotIdentity},
		{&r.OutOfScope, d.OutOfScope},
	}
	for _, l := range lists {
		if *l.dst == nil {
			*l.dst = l.def
		}
	}

	replies := []struct {
		dst *string
		def string
	}{
		{&r.Replies.Empty, d.Replies.Empty},
		{&r.Replies.TooLong, d.Replies.TooLong},
		{&r.Replies.Profanity, d.Replies.Profanity},
		{&r.Replies.Pronoun, d.Replies.Pronoun},
		{&r.Replies.Greeting, d.Replies.Greeting},
		{&r.Replies.Thanks, d.Replies.Thanks},
		{&r.Replies.Farewell, d.Replies.Farewell},
		{&r.Replies.TooGeneric, d.Replies.TooGeneric},
		{&r.Replies.Gibberish, d.Replies.Gibberish},
		{&r.Replies.EmojiOnly, d.Replies.EmojiOnly},
		{&r.Replies.BotIdentity, d.Replies.BotIdentity},
		{&r.Replies.OutOfScope, d.Replies.OutOfScope},
		{&r.Replies.Link, d.Replies.Link},
	}
	for _, rp := range replies {
		if *rp.dst == "" {
			*rp.dst = rp.def
		}
	}
	return r
}

// LoadRules reads a TOML rules file. Fields missing from the file keep their
// defaults.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes TOML rules. Fields missing from data keep their defaults.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	md, err := toml.Decode(string(data), &r)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to parse rules: %w", err)
	}
	// Zero is a meaningful lockout, so only an absent key takes the default.
	if !md.IsDefined("lockout_seconds") {
		r.LockoutSeconds = DefaultRules().LockoutSeconds
	}
	return r.WithDefaults(), nil
}
