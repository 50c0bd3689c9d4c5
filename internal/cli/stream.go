// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"io"
	"strings"

	"github.com/jeranaias/campusbot/internal/conversation"
	"github.com/jeranaias/campusbot/internal/events"
	"github.com/jeranaias/campusbot/internal/model"
)

const eventBuffer = 256

// revealWriter copies the growing visible text of one assistant turn to w.
type revealWriter struct {
	w       io.Writer
	turnID  string
	written string
}

// update writes whatever t reveals beyond what was already written.
func (r *revealWriter) update(t model.Turn) {
	if t.ID != r.turnID {
		return
	}
	r.write(t.VisibleText)
}

// finish writes the rest of a settled turn and ends the line.
func (r *revealWriter) finish(t model.Turn) {
	r.write(t.DisplayText())
	io.WriteString(r.w, "\n")
}

func (r *revealWriter) write(text string) {
	if !strings.HasPrefix(text, r.written) {
		return
	}
	if rest := text[len(r.written):]; rest != "" {
		io.WriteString(r.w, rest)
		r.written = text
	}
}

// follow asks query on m and waits for the answer to settle. With live set
// the reveal is copied to out as it grows. Warnings go to msgs. When ctx is
// canceled the answer is stopped at its visible text and errStopped is
// returned along with the exchange.
func follow(ctx context.Context, m *conversation.Machine, query string, out io.Writer, msgs *printer, live bool) (model.Exchange, error) {
	ch, stop := m.Bus().Listen(eventBuffer,
		events.TopicTurnUpdated,
		events.TopicExchangeSettled,
		events.TopicWarning,
	)
	defer stop()

	res, err := m.Submit(ctx, query)
	if err != nil {
		drainWarnings(ch, msgs)
		return model.Exchange{}, err
	}
	if res.AssistantTurnID == "" {
		return model.Exchange{}, &RejectedError{Reason: res.Verdict.Warning}
	}

	reveal := &revealWriter{w: out, turnID: res.AssistantTurnID}
	done := ctx.Done()
	stopped := false
	for {
		select {
		case <-done:
			done = nil
			stopped = m.RequestCancelStreaming()
		case ev := <-ch:
			switch ev.Topic {
			case events.TopicWarning:
				if ev.Warning != nil {
					msgs.warn(*ev.Warning)
				}
			case events.TopicTurnUpdated:
				if live && ev.Turn != nil {
					reveal.update(*ev.Turn)
				}
			case events.TopicExchangeSettled:
				if ev.Exchange == nil || ev.Exchange.Assistant.ID != res.AssistantTurnID {
					continue
				}
				if live {
					reveal.finish(ev.Exchange.Assistant)
				}
				if stopped || ev.Exchange.Assistant.Stopped {
					return *ev.Exchange, errStopped
				}
				return *ev.Exchange, nil
			}
		}
	}
}

// drainWarnings prints the warnings already queued on ch.
func drainWarnings(ch <-chan events.Event, msgs *printer) {
	for {
		select {
		case ev := <-ch:
			if ev.Topic == events.TopicWarning && ev.Warning != nil {
				msgs.warn(*ev.Warning)
			}
		default:
			return
		}
	}
}
