package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/containerd/errdefs"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonkaushik/finagent/internal/research"
)

// researcherStub scripts the agent behind the handler
type researcherStub struct {
	answer   string
	err      error
	thoughts []string
	question string
	called   bool
}

func (s *researcherStub) Research(_ context.Context, question string, emit research.EventSink) (string, error) {
	s.called = true
	s.question = question
	for _, thought := range s.thoughts {
		emit(research.Event{Type: research.EventThought, Content: thought})
	}
	if s.err != nil {
		return "", s.err
	}
	emit(research.Event{Type: research.EventMessage, Content: s.answer})
	return s.answer, nil
}

func postChat(t *testing.T, handler *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/research/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.HandleChat(rec, req)
	return rec
}

// parseFrames splits an SSE body into its decoded events
func parseFrames(t *testing.T, body string) []research.Event {
	t.Helper()
	var events []research.Event
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		require.True(t, strings.HasPrefix(line, "data: "), "unexpected SSE line: %q", line)

		var event research.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	return events
}

func TestHandleChat_StreamsThoughtsThenAnswer(t *testing.T) {
	stub := &researcherStub{
		answer:   "AAPL closed at $230.49.",
		thoughts: []string{"Researching your question..."},
	}
	handler := NewHandler(stub, 0)

	rec := postChat(t, handler, `{"message": "What did AAPL close at?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))

	events := parseFrames(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, research.EventThought, events[0].Type)
	assert.Equal(t, research.EventMessage, events[1].Type)
	assert.Equal(t, "AAPL closed at $230.49.", events[1].Content)

	assert.Equal(t, "What did AAPL close at?", stub.question)
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	stub := &researcherStub{}
	handler := NewHandler(stub, 0)

	rec := postChat(t, handler, `{"message": "   "}`)

	events := parseFrames(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, research.EventError, events[0].Type)
	assert.Contains(t, events[0].Content, "provide a message")
	assert.False(t, stub.called, "agent should not run for an empty message")
}

func TestHandleChat_TruncatesLongMessage(t *testing.T) {
	stub := &researcherStub{answer: "ok"}
	handler := NewHandler(stub, 500)

	long := strings.Repeat("é", 600)
	payload, err := json.Marshal(map[string]string{"message": long})
	require.NoError(t, err)

	postChat(t, handler, string(payload))

	assert.Equal(t, 500, utf8.RuneCountInString(stub.question))
}

func TestHandleChat_InvalidBody(t *testing.T) {
	stub := &researcherStub{}
	handler := NewHandler(stub, 0)

	rec := postChat(t, handler, `{"message": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid request body")
	assert.False(t, stub.called)
}

func TestHandleChat_ErrorCategories(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "missing model credential",
			err:  fmt.Errorf("%w: invalid x-api-key", errdefs.ErrUnauthenticated),
			want: "not configured",
		},
		{
			name: "model rate limited",
			err:  fmt.Errorf("%w: 429 from model API", errdefs.ErrResourceExhausted),
			want: "rate limit",
		},
		{
			name: "deadline exceeded",
			err:  fmt.Errorf("research: %w", context.DeadlineExceeded),
			want: "took too long",
		},
		{
			name: "anything else",
			err:  fmt.Errorf("dial tcp: connection refused"),
			want: "Something went wrong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler(&researcherStub{err: tt.err}, 0)

			rec := postChat(t, handler, `{"message": "hi"}`)

			events := parseFrames(t, rec.Body.String())
			require.Len(t, events, 1)
			assert.Equal(t, research.EventError, events[0].Type)
			assert.Contains(t, events[0].Content, tt.want)
		})
	}
}

func TestHandleChat_ClientGoneWritesNoErrorFrame(t *testing.T) {
	handler := NewHandler(&researcherStub{err: context.Canceled}, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/research/chat", strings.NewReader(`{"message": "hi"}`))
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	rec := httptest.NewRecorder()
	handler.HandleChat(rec, req.WithContext(ctx))

	events := parseFrames(t, rec.Body.String())
	assert.Empty(t, events, "no frames should be written after the client disconnects")
}

func TestRegisterRoutes(t *testing.T) {
	handler := NewHandler(&researcherStub{answer: "ok"}, 0)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	resp, err := http.Post(server.URL+"/api/research/chat", "application/json", strings.NewReader(`{"message": "hi"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
}
