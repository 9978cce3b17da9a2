package plugin

import (
	"context"

	"nlcp/aitools"
)

// PluginTool wraps a provider tool and implements the aitools.Tool interface
type PluginTool struct {
	provider *ProviderClient
	info     aitools.ToolDescriptor
}

// NewPluginTool creates a new PluginTool from a provider and tool info
func NewPluginTool(provider *ProviderClient, info aitools.ToolDescriptor) *PluginTool {
	return &PluginTool{
		provider: provider,
		info:     info,
	}
}

// ToolName returns the name of the tool
func (t *PluginTool) ToolName() string {
	return t.info.Name
}

// ToolDescription returns a description of what the tool does
func (t *PluginTool) ToolDescription() string {
	return t.info.Description
}

// ToolPayloadSchema returns the JSON schema for the tool's input parameters
func (t *PluginTool) ToolPayloadSchema() aitools.Schema {
	return t.info.Schema
}

// Call forwards the payload to the owning provider.
func (t *PluginTool) Call(ctx context.Context, payload string) aitools.Result {
	if err := ctx.Err(); err != nil {
		return aitools.Fail(contextError(ctx, t.info.Name))
	}
	return t.provider.Call(ctx, t.info.Name, payload)
}
