package prompts

import (
	_ "embed"
	"fmt"
	"strings"

	"nlcp/aitools"
)

//go:embed agent.md
var agentPromptTemplate string

// GetAgentPrompt returns the agent system prompt with tools injected
func GetAgentPrompt(tools []aitools.ToolDescriptor) string {
	return strings.Replace(agentPromptTemplate, "{{TOOLS}}", formatTools(tools), 1)
}

// FormatReminder is sent after a response that could not be decoded.
func FormatReminder(reason string) string {
	return fmt.Sprintf(`<FORMAT_ERROR>
Your last response could not be understood: %s.
Respond again using only the tagged blocks: either <ACTION> with <ACTION_INPUT>, or <ANSWER>.
</FORMAT_ERROR>`, reason)
}

// formatTools formats the tool descriptors into a readable string for the prompt
func formatTools(tools []aitools.ToolDescriptor) string {
	if len(tools) == 0 {
		return "NO TOOLS AVAILABLE"
	}

	var sb strings.Builder
	for _, tool := range tools {
		fmt.Fprintf(&sb, "### %s\n\n", tool.Name)
		fmt.Fprintf(&sb, "%s\n\n", tool.Description)
		fmt.Fprintf(&sb, "**Input Schema:**\n```json\n%s\n```\n\n", tool.Schema.String())
	}
	return sb.String()
}
