// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package answer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (l *noticeLog) handle(n Notice) {
	l.mu.Lock()
	l.notices = append(l.notices, n)
	l.mu.Unlock()
}

func (l *noticeLog) all() []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Notice(nil), l.notices...)
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *noticeLog) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	notices := &noticeLog{}
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.Secret = "s3cret"
	cfg.RequestsPerSecond = 0
	return NewClient(cfg, WithNoticeHandler(notices.handle)), notices
}

// =============================================================================
// ASK TESTS
// =============================================================================

func TestAsk_SendsQueryAndDecodesText(t *testing.T) {
	client, notices := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/result", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "s3cret", r.Header.Get("x-vercel-secret"))

		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "when do exams start", req.Query)

		w.Header().Set("X-RateLimit-Remaining", "4")
		w.Write([]byte(`{"response": "Exams start on **May 2**. See [calendar](http://uni.edu/cal)"}`))
	})

	text, err := client.Ask(context.Background(), EndpointAssistant, "when do exams start")
	require.NoError(t, err)
	assert.Equal(t, "Exams start on **May 2**. See [calendar](http://uni.edu/cal)", text)
	assert.Empty(t, notices.all())
}

func TestAsk_QuotaLowNotice(t *testing.T) {
	client, notices := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "1")
		w.Write([]byte(`{"response": "ok"}`))
	})

	_, err := client.Ask(context.Background(), EndpointNotices, "latest notices this week")
	require.NoError(t, err)

	got := notices.all()
	require.Len(t, got, 1)
	assert.Equal(t, NoticeQuotaLow, got[0].Kind)
	assert.Equal(t, "Heads up! You're almost out of requests. Try again soon if needed.", got[0].Message)
}

func TestAsk_MissingQuotaHeaderIsQuiet(t *testing.T) {
	client, notices := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": "ok"}`))
	})
	_, err := client.Ask(context.Background(), EndpointAssistant, "what clubs exist here")
	require.NoError(t, err)
	assert.Empty(t, notices.all())
}

func TestAsk_RateLimited(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter string
		wantWait   time.Duration
		wantText   string
	}{
		{"explicit", "30", 30 * time.Second, "Too many requests. Please wait 30 seconds before trying again."},
		{"missing", "", 60 * time.Second, "Too many requests. Please wait 60 seconds before trying again."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, notices := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tc.retryAfter != "" {
					w.Header().Set("Retry-After", tc.retryAfter)
				}
				w.WriteHeader(http.StatusTooManyRequests)
			})

			_, err := client.Ask(context.Background(), EndpointAssistant, "what is the fee")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRateLimited))

			var se *ServiceError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, http.StatusTooManyRequests, se.Status)
			assert.Equal(t, tc.wantWait, se.RetryAfter)

			got := notices.all()
			require.Len(t, got, 1)
			assert.Equal(t, NoticeRateLimited, got[0].Kind)
			assert.Equal(t, tc.wantText, got[0].Message)
		})
	}
}

func TestAsk_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			want:    ErrBadStatus,
		},
		{
			name:    "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"response": `)) },
			want:    ErrInvalidResponse,
		},
		{
			name:    "object response",
			handler: func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"response": {"a": 1}}`)) },
			want:    ErrInvalidResponse,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := newTestClient(t, tc.handler)
			_, err := client.Ask(context.Background(), EndpointAssistant, "what is the fee")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAsk_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = url
	_, err := NewClient(cfg).Ask(context.Background(), EndpointAssistant, "what is the fee")
	assert.ErrorIs(t, err, ErrConnection)
}

func TestAsk_Canceled(t *testing.T) {
	block := make(chan struct{})
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := client.Ask(ctx, EndpointAssistant, "what is the fee")
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestAsker_BindsEndpoint(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/pyq_papers", r.URL.Path)
		w.Write([]byte(`{"response": []}`))
	})

	asker := client.For(EndpointPapers)
	text, err := asker.Ask(context.Background(), "pyq of dbms 2023")
	require.NoError(t, err)
	assert.Equal(t, NoPapersText, text)
	assert.Equal(t, "papers", asker.Endpoint().Name)
}

// =============================================================================
// FEEDBACK TESTS
// =============================================================================

func TestSubmitFeedback(t *testing.T) {
	var got Feedback
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/feedback", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"response": "Thanks for the feedback"}`))
	})

	ack, err := client.SubmitFeedback(context.Background(), Feedback{
		UserQuery:  "who is the HOD of IT",
		AIResponse: "The HOD of IT is ...",
		Sentiment:  SentimentNegative,
		Message:    "outdated",
	})
	require.NoError(t, err)
	assert.Equal(t, "Thanks for the feedback", ack)
	assert.Equal(t, SentimentNegative, got.Sentiment)
	assert.Equal(t, "outdated", got.Message)
}

func TestSubmitFeedback_Validation(t *testing.T) {
	client := NewClient(DefaultConfig())
	_, err := client.SubmitFeedback(context.Background(), Feedback{UserQuery: "q"})
	assert.ErrorIs(t, err, ErrEmptyFeedback)
}

func TestServiceError_Message(t *testing.T) {
	err := &ServiceError{Type: ErrTypeBadStatus, Message: "boom", Status: 502, Cause: errors.New("eof")}
	assert.True(t, strings.Contains(err.Error(), "502"))
	assert.True(t, strings.Contains(err.Error(), "eof"))
	assert.Equal(t, "bad_status", err.Type.String())
	assert.False(t, errors.Is(err, ErrTimeout))
}
