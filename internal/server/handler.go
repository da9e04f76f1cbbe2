// Package server exposes the research agent over HTTP with an SSE response
// stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/containerd/errdefs"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ramonkaushik/finagent/internal/research"
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

const defaultMaxQuestionLen = 500

// Researcher is the slice of the agent the handler depends on.
type Researcher interface {
	Research(ctx context.Context, question string, emit research.EventSink) (string, error)
}

// Handler handles research chat requests.
type Handler struct {
	agent          Researcher
	maxQuestionLen int
}

// NewHandler creates a handler around the given agent. Questions longer than
// maxQuestionLen runes are silently truncated before use.
func NewHandler(agent Researcher, maxQuestionLen int) *Handler {
	if maxQuestionLen <= 0 {
		maxQuestionLen = defaultMaxQuestionLen
	}
	return &Handler{
		agent:          agent,
		maxQuestionLen: maxQuestionLen,
	}
}

// RegisterRoutes registers the research routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/research", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
	})
}

type chatRequest struct {
	Message string `json:"message"`
}

// HandleChat handles POST /api/research/chat. The response is an SSE stream
// of `data: <JSON>` frames with shape {"type","content"}; it always ends with
// exactly one message frame or one error frame, then closes.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	question := strings.TrimSpace(req.Message)
	if question == "" {
		h.writeEvent(w, flusher, research.Event{
			Type:    research.EventError,
			Content: "Please provide a message.",
		})
		return
	}
	if utf8.RuneCountInString(question) > h.maxQuestionLen {
		question = string([]rune(question)[:h.maxQuestionLen])
	}

	reqID := chiMiddleware.GetReqID(r.Context())
	slog.Info("Research chat request",
		"request_id", reqID,
		"message_length", len(question),
	)

	// The sink runs inline in the agent's goroutine; frames go out in
	// production order and are flushed immediately
	emit := func(event research.Event) {
		h.writeEvent(w, flusher, event)
	}

	if _, err := h.agent.Research(r.Context(), question, emit); err != nil {
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			// Client went away; nobody is listening for an error frame
			slog.Info("Research request cancelled by client", "request_id", reqID)
			return
		}
		slog.Error("Research request failed", "request_id", reqID, "error", err)
		h.writeEvent(w, flusher, research.Event{
			Type:    research.EventError,
			Content: categorize(err),
		})
	}
}

// writeEvent writes one SSE frame and flushes it immediately
func (h *Handler) writeEvent(w io.Writer, flusher http.Flusher, event research.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("Failed to marshal SSE event", "error", err)
		return
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		slog.Warn("Failed to write SSE frame", "error", err)
		return
	}
	flusher.Flush()
}

// categorize maps a loop-level failure to a user-facing message by its
// errdefs discriminant. Tool-level failures never reach this point: adapters
// convert them to text for the model, so an unauthenticated error here is
// always the model credential.
func categorize(err error) string {
	switch {
	case errdefs.IsUnauthorized(err):
		return "The research service is not configured: the model API key is missing or invalid."
	case errdefs.IsResourceExhausted(err):
		return "The model service rate limit has been reached. Please try again in a few minutes."
	case errors.Is(err, context.DeadlineExceeded):
		return "The request took too long to complete. Please try a simpler question."
	default:
		return "Something went wrong while researching your question. Please try again."
	}
}
