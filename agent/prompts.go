package agent

import (
	"nlcp/agent/internal/prompts"
	"nlcp/aitools"
)

// SystemPrompt returns the system prompt an LLM oracle is given for tools.
func SystemPrompt(tools []aitools.ToolDescriptor) string {
	return prompts.GetAgentPrompt(tools)
}
