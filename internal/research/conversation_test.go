package research

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func apiError(statusCode int) *anthropic.Error {
	return &anthropic.Error{
		StatusCode: statusCode,
		Request:    httptest.NewRequest("POST", "https://api.anthropic.com/v1/messages", nil),
	}
}

func TestClassifyModelError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(t *testing.T, err error)
	}{
		{
			name: "context cancellation passes through",
			err:  fmt.Errorf("sending message: %w", context.Canceled),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, context.Canceled)
				assert.False(t, errdefs.IsUnavailable(err))
			},
		},
		{
			name: "deadline passes through",
			err:  context.DeadlineExceeded,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, context.DeadlineExceeded)
			},
		},
		{
			name: "401 is unauthenticated",
			err:  fmt.Errorf("request failed: %w", apiError(401)),
			check: func(t *testing.T, err error) {
				assert.True(t, errdefs.IsUnauthorized(err))
			},
		},
		{
			name: "403 is unauthenticated",
			err:  apiError(403),
			check: func(t *testing.T, err error) {
				assert.True(t, errdefs.IsUnauthorized(err))
			},
		},
		{
			name: "429 is resource exhausted",
			err:  apiError(429),
			check: func(t *testing.T, err error) {
				assert.True(t, errdefs.IsResourceExhausted(err))
			},
		},
		{
			name: "other API errors are unavailable",
			err:  apiError(500),
			check: func(t *testing.T, err error) {
				assert.True(t, errdefs.IsUnavailable(err))
			},
		},
		{
			name: "transport errors are unavailable",
			err:  fmt.Errorf("dial tcp: connection refused"),
			check: func(t *testing.T, err error) {
				assert.True(t, errdefs.IsUnavailable(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, classifyModelError(tt.err))
		})
	}
}

func TestConversation_GetResponseSendsFullHistory(t *testing.T) {
	sender := &scriptedSender{
		responses: []*anthropic.Message{
			newAnthropicResponse(t, anthropic.NewTextBlock("hello")),
		},
	}
	conv := NewConversation(sender, anthropic.ModelClaudeSonnet4_5, 1024, nil, "You are a test.")
	conv.AddUserMessage("hi")

	response, err := conv.GetResponse(context.Background())
	require.NoError(t, err)
	require.NotNil(t, response)

	require.Len(t, sender.calls, 1)
	params := sender.calls[0]
	assert.Equal(t, anthropic.ModelClaudeSonnet4_5, params.Model)
	assert.Equal(t, int64(1024), params.MaxTokens)
	require.Len(t, params.System, 1)
	assert.Equal(t, "You are a test.", params.System[0].Text)

	// The reply is recorded, so the next call carries it
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, conv.Messages[1].Role)
}

func TestConversation_AddToolResults(t *testing.T) {
	conv := NewConversation(nil, anthropic.ModelClaudeSonnet4_5, 1024, nil, "")

	conv.AddToolResults([]anthropic.ToolResultBlockParam{
		newToolResult("call_1", "result one", false),
		newToolResult("call_2", "result two", true),
	})

	require.Len(t, conv.Messages, 1)
	message := conv.Messages[0]
	assert.Equal(t, anthropic.MessageParamRoleUser, message.Role)
	assert.Equal(t, []string{"call_1", "call_2"}, toolResultIDs(t, message))
}
