// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/campusbot/internal/answer"
	"github.com/jeranaias/campusbot/internal/conversation"
	"github.com/jeranaias/campusbot/internal/events"
)

// busMsg carries one bus event into the update loop.
type busMsg struct {
	ev events.Event
}

// submittedMsg reports the result of Machine.Submit.
type submittedMsg struct {
	screen string
	query  string
	out    conversation.Outcome
	err    error
}

// feedbackSentMsg reports the result of a feedback submission.
type feedbackSentMsg struct {
	sentiment answer.Sentiment
	err       error
}

// actionDoneMsg follows a fire-and-forget machine call.
type actionDoneMsg struct {
	screen string
}
