package research

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// Registry holds the fixed set of tools available to the model, looked up by
// name when the model requests a call.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry with all research tools over the given
// market data source.
func NewRegistry(data MarketData) *Registry {
	r := &Registry{
		tools: make(map[string]Tool),
	}

	r.register(NewStockQuoteTool(data))
	r.register(NewCompanyOverviewTool(data))
	r.register(NewMarketNewsTool(data))

	return r
}

func (r *Registry) register(tool Tool) {
	name := tool.Param().Name
	r.tools[name] = tool
	r.order = append(r.order, name)
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Params returns the tool schemas for the model API, in registration order.
func (r *Registry) Params() []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, 0, len(r.order))
	for _, name := range r.order {
		param := r.tools[name].Param()
		params = append(params, anthropic.ToolUnionParam{OfTool: &param})
	}
	return params
}

// Execute runs the requested tool call and always produces a result carrying
// the call's ID. A name the model invented resolves to a synthesized error
// result rather than being dropped, so every tool call in the conversation is
// paired with exactly one result.
func (r *Registry) Execute(ctx context.Context, block anthropic.ToolUseBlock) anthropic.ToolResultBlockParam {
	tool, ok := r.tools[block.Name]
	if !ok {
		return newToolResult(block.ID, fmt.Sprintf("%s Unknown tool %q. Available tools: %v", WarningMarker, block.Name, r.order), true)
	}
	return newToolResult(block.ID, tool.Run(ctx, block), false)
}

// newToolResult creates a ToolResultBlockParam tagged with the originating
// call ID
func newToolResult(toolUseID string, result string, isError bool) anthropic.ToolResultBlockParam {
	return anthropic.ToolResultBlockParam{
		ToolUseID: toolUseID,
		Content: []anthropic.ToolResultBlockParamContentUnion{
			{OfText: &anthropic.TextBlockParam{Text: result}},
		},
		IsError: anthropic.Bool(isError),
	}
}
