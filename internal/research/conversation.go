package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	anthropt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/containerd/errdefs"
)

// MessageSender abstracts the model API so conversations can be driven by a
// stub in tests.
type MessageSender interface {
	SendMessage(ctx context.Context, params anthropic.MessageNewParams, opts ...anthropt.RequestOption) (*anthropic.Message, error)
}

// StreamingMessageSender sends messages over the streaming API and
// accumulates the event stream into a complete message.
type StreamingMessageSender struct {
	client anthropic.Client
}

func NewStreamingMessageSender(client anthropic.Client) StreamingMessageSender {
	return StreamingMessageSender{
		client: client,
	}
}

func (sms StreamingMessageSender) SendMessage(
	ctx context.Context,
	params anthropic.MessageNewParams,
	opts ...anthropt.RequestOption,
) (*anthropic.Message, error) {
	stream := sms.client.Messages.NewStreaming(ctx, params, opts...)
	response := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		err := response.Accumulate(event)
		if err != nil {
			return nil, fmt.Errorf("failed to accumulate response content stream: %w", err)
		}
	}
	if stream.Err() != nil {
		return nil, fmt.Errorf("failed to stream response: %w", stream.Err())
	}
	if response.StopReason == "" {
		b, err := json.Marshal(response)
		if err != nil {
			slog.Warn("Failed to marshal corrupt message for inspection", "error", err)
		}
		return nil, fmt.Errorf("malformed message: %v", string(b))
	}

	return &response, nil
}

// classifyModelError attaches an errdefs discriminant to a model API failure
// at the point of origin, so the endpoint boundary can categorize it without
// inspecting rendered text. Context errors pass through untouched.
func classifyModelError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: model API key missing or invalid: %v", errdefs.ErrUnauthenticated, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: model service rate limit reached: %v", errdefs.ErrResourceExhausted, err)
		}
	}
	return fmt.Errorf("%w: %v", errdefs.ErrUnavailable, err)
}

// Conversation is the append-only message history for a single request. The
// system prompt is fixed at construction and never mutated; everything else
// grows by whole messages.
type Conversation struct {
	sender MessageSender

	model        anthropic.Model
	systemPrompt string
	tools        []anthropic.ToolUnionParam

	maxOutputTokens int64

	// Messages holds the alternating user/assistant history, exported so
	// tests can assert on its shape
	Messages []anthropic.MessageParam
}

func NewConversation(
	sender MessageSender,
	model anthropic.Model,
	maxOutputTokens int64,
	tools []anthropic.ToolUnionParam,
	systemPrompt string,
) *Conversation {
	return &Conversation{
		sender: sender,

		model:        model,
		systemPrompt: systemPrompt,
		tools:        tools,

		maxOutputTokens: maxOutputTokens,
	}
}

// AddUserMessage appends a plain-text user message
func (c *Conversation) AddUserMessage(text string) {
	c.Messages = append(c.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
}

// AddToolResults appends all results of one tool-execution batch as a single
// user message. Every result must carry the ID of the tool call it answers.
func (c *Conversation) AddToolResults(results []anthropic.ToolResultBlockParam) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
	for i := range results {
		blocks = append(blocks, anthropic.ContentBlockParamUnion{OfToolResult: &results[i]})
	}
	c.Messages = append(c.Messages, anthropic.NewUserMessage(blocks...))
}

// GetResponse invokes the model with the full history and the tool schemas,
// records the reply in the history, and returns it.
func (c *Conversation) GetResponse(ctx context.Context) (*anthropic.Message, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxOutputTokens,
		System: []anthropic.TextBlockParam{
			{Text: c.systemPrompt},
		},
		Messages: c.Messages,
		Tools:    c.tools,
	}

	response, err := c.sender.SendMessage(ctx, params)
	if err != nil {
		return nil, classifyModelError(err)
	}

	slog.Debug("Model response received",
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens,
		"stop_reason", response.StopReason,
	)

	c.Messages = append(c.Messages, response.ToParam())

	return response, nil
}
