package research

import (
	"context"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lookup(t *testing.T) {
	registry := NewRegistry(&marketDataStub{})

	for _, name := range []string{"get_stock_quote", "get_company_overview", "get_market_news"} {
		tool, ok := registry.Lookup(name)
		require.True(t, ok, "expected %s to be registered", name)
		assert.Equal(t, name, tool.Param().Name)
	}

	_, ok := registry.Lookup("get_crystal_ball")
	assert.False(t, ok)
}

func TestRegistry_ParamsOrder(t *testing.T) {
	registry := NewRegistry(&marketDataStub{})

	params := registry.Params()
	require.Len(t, params, 3)

	var names []string
	for _, param := range params {
		require.NotNil(t, param.OfTool)
		names = append(names, param.OfTool.Name)
	}
	assert.Equal(t, []string{"get_stock_quote", "get_company_overview", "get_market_news"}, names)
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	registry := NewRegistry(&marketDataStub{})

	result := registry.Execute(context.Background(), anthropic.ToolUseBlock{
		ID:    "call_42",
		Name:  "get_crystal_ball",
		Input: []byte(`{}`),
	})

	assert.Equal(t, "call_42", result.ToolUseID)
	require.True(t, result.IsError.Valid())
	assert.True(t, result.IsError.Value)
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0].OfText.Text, "Unknown tool")
	assert.Contains(t, result.Content[0].OfText.Text, "get_stock_quote")
}

func TestRegistry_ExecuteKnownTool(t *testing.T) {
	registry := NewRegistry(&marketDataStub{})

	result := registry.Execute(context.Background(), anthropic.ToolUseBlock{
		ID:    "call_7",
		Name:  "get_stock_quote",
		Input: []byte(`{"symbol": "AAPL"}`),
	})

	assert.Equal(t, "call_7", result.ToolUseID)
	require.True(t, result.IsError.Valid())
	assert.False(t, result.IsError.Value)
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0].OfText.Text, "AAPL")
}
