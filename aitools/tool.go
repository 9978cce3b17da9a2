package aitools

import (
	"context"
	"encoding/json"
)

// Tool defines the interface for tools the agent can call
type Tool interface {
	// ToolName returns the name of the tool
	ToolName() string

	// ToolDescription returns a description of what the tool does
	ToolDescription() string

	// ToolPayloadSchema returns the JSON schema for the tool's input parameters
	ToolPayloadSchema() Schema

	// Call executes the tool with a JSON object payload
	Call(ctx context.Context, payload string) Result
}

// ToolDescriptor is the discovered, immutable description of a tool.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Schema      Schema `json:"input_schema"`
}

// Describe builds the descriptor for a tool.
func Describe(t Tool) ToolDescriptor {
	return ToolDescriptor{
		Name:        t.ToolName(),
		Description: t.ToolDescription(),
		Schema:      t.ToolPayloadSchema(),
	}
}

// ParsePayload decodes a tool payload into an argument map. An empty payload
// is an empty object.
func ParsePayload(payload string) (map[string]any, error) {
	args := map[string]any{}
	if payload == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(payload), &args); err != nil {
		return nil, Errorf(KindInvalidArgument, "payload is not a JSON object: %v", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
