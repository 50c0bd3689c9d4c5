// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package answer

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Sentiment is the user's verdict on an answer.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
)

// ErrEmptyFeedback is returned when feedback has no answer to refer to.
var ErrEmptyFeedback = errors.New("feedback needs a query and an answer")

// Feedback is posted about one settled exchange.
type Feedback struct {
	UserQuery  string    `json:"userQuery"`
	AIResponse string    `json:"aiResponse"`
	Sentiment  Sentiment `json:"sentiment"`
	Message    string    `json:"message"`
}

// SubmitFeedback posts fb and returns the service's acknowledgement text,
// which may be empty.
func (c *Client) SubmitFeedback(ctx context.Context, fb Feedback) (string, error) {
	if strings.TrimSpace(fb.UserQuery) == "" || strings.TrimSpace(fb.AIResponse) == "" {
		return "", ErrEmptyFeedback
	}
	if fb.Sentiment != SentimentNegative {
		fb.Sentiment = SentimentPositive
	}

	body, err := c.post(ctx, c.config.FeedbackPath, fb)
	if err != nil {
		return "", err
	}

	var resp serviceResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Response) == 0 {
		return "", nil
	}
	var ack string
	if err := json.Unmarshal(resp.Response, &ack); err != nil {
		return "", nil
	}
	return ack, nil
}
