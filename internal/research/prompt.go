package research

import (
	_ "embed"
)

//go:embed system_prompt.md
var systemPrompt string

// SystemPrompt returns the fixed system instructions for the research agent
func SystemPrompt() string {
	return systemPrompt
}
