package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/ramonkaushik/finagent/internal/research"

const (
	defaultMaxIterations   = 10
	defaultTimeout         = 30 * time.Second
	defaultMaxOutputTokens = 4096
)

// ExhaustedAnswer is returned when the iteration ceiling is reached without a
// final answer. It is a weak answer, not an error: the stream still ends with
// a normal message frame.
const ExhaustedAnswer = "I wasn't able to complete the research within the allotted number of steps. Please try a narrower question."

// Agent drives the conversation between the model and the tool registry until
// a final answer is produced or the iteration ceiling is reached.
type Agent struct {
	sender   MessageSender
	registry *Registry
	model    anthropic.Model

	maxIterations   int
	timeout         time.Duration
	maxOutputTokens int64
}

// AgentOption configures an Agent.
type AgentOption func(*Agent)

// WithMaxIterations sets the ceiling on model/tool round trips.
func WithMaxIterations(n int) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithTimeout sets the wall-clock budget for one research request.
func WithTimeout(d time.Duration) AgentOption {
	return func(a *Agent) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithMaxOutputTokens sets the per-response output token cap.
func WithMaxOutputTokens(n int64) AgentOption {
	return func(a *Agent) {
		if n > 0 {
			a.maxOutputTokens = n
		}
	}
}

// NewAgent creates an agent. Both the iteration ceiling and the wall-clock
// budget are construction parameters so callers can tighten them per
// deployment.
func NewAgent(sender MessageSender, registry *Registry, model anthropic.Model, opts ...AgentOption) *Agent {
	a := &Agent{
		sender:   sender,
		registry: registry,
		model:    model,

		maxIterations:   defaultMaxIterations,
		timeout:         defaultTimeout,
		maxOutputTokens: defaultMaxOutputTokens,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Research answers a question by iterating between the model and the tools,
// emitting a progress notice and then exactly one final answer through the
// sink. On failure no answer is emitted and the error is returned for the
// caller to categorize. Cancelling ctx aborts the loop and any in-flight
// tool executions.
func (a *Agent) Research(ctx context.Context, question string, emit EventSink) (answer string, err error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	conversationID := uuid.New().String()
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "research.conversation")
	span.SetAttributes(
		attribute.String("conversation.id", conversationID),
		attribute.Int("question.length", len(question)),
	)
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	conversation := NewConversation(a.sender, a.model, a.maxOutputTokens, a.registry.Params(), SystemPrompt())
	conversation.AddUserMessage(question)

	emit(Event{Type: EventThought, Content: "Researching your question..."})

	for i := 0; i < a.maxIterations; i++ {
		response, err := a.takeTurn(ctx, tracer, conversation, conversationID, i)
		if err != nil {
			return "", fmt.Errorf("model request failed: %w", err)
		}

		calls := toolCalls(response)
		if len(calls) == 0 {
			answer := responseText(response)
			emit(Event{Type: EventMessage, Content: answer})
			return answer, nil
		}

		slog.Info("Executing tool calls",
			"conversation_id", conversationID,
			"iteration", i,
			"count", len(calls),
		)

		results := a.executeAll(ctx, tracer, calls)
		if err := ctx.Err(); err != nil {
			return "", err
		}
		conversation.AddToolResults(results)
	}

	slog.Warn("Iteration ceiling reached without a final answer",
		"conversation_id", conversationID,
		"max_iterations", a.maxIterations,
	)
	emit(Event{Type: EventMessage, Content: ExhaustedAnswer})
	return ExhaustedAnswer, nil
}

// takeTurn performs one model invocation inside its own span
func (a *Agent) takeTurn(
	ctx context.Context,
	tracer trace.Tracer,
	conversation *Conversation,
	conversationID string,
	iteration int,
) (*anthropic.Message, error) {
	ctx, span := tracer.Start(ctx, "research.turn")
	defer span.End()
	span.SetAttributes(
		attribute.String("conversation.id", conversationID),
		attribute.Int("turn.index", iteration),
	)

	response, err := conversation.GetResponse(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int64("tokens.input", response.Usage.InputTokens),
		attribute.Int64("tokens.output", response.Usage.OutputTokens),
	)
	return response, nil
}

// executeAll runs every requested tool call concurrently and joins the
// results. Result order follows the request order, which keeps each result
// adjacent to its call ID regardless of completion order; all results are in
// place before the method returns.
func (a *Agent) executeAll(ctx context.Context, tracer trace.Tracer, calls []anthropic.ToolUseBlock) []anthropic.ToolResultBlockParam {
	results := make([]anthropic.ToolResultBlockParam, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call anthropic.ToolUseBlock) {
			defer wg.Done()

			toolCtx, span := tracer.Start(ctx, "research.tool")
			defer span.End()
			span.SetAttributes(
				attribute.String("tool.name", call.Name),
				attribute.String("tool.call_id", call.ID),
			)

			results[i] = a.registry.Execute(toolCtx, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

// toolCalls extracts the tool use blocks from a model reply
func toolCalls(message *anthropic.Message) []anthropic.ToolUseBlock {
	var calls []anthropic.ToolUseBlock
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.ToolUseBlock:
			calls = append(calls, variant)
		}
	}
	return calls
}

// responseText concatenates the text blocks of a model reply
func responseText(message *anthropic.Message) string {
	var sb strings.Builder
	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(variant.Text)
		}
	}
	return sb.String()
}
