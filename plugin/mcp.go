package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"nlcp/aitools"
)

// ServerVersion is reported in the MCP handshake.
var ServerVersion = "dev"

// ServeMCP serves a provider over MCP on stdin/stdout until the host closes
// the stream.
func ServeMCP(name string, p Provider) error {
	s, err := NewMCPServer(name, p)
	if err != nil {
		return err
	}
	return server.ServeStdio(s)
}

// NewMCPServer exposes a provider's catalog as MCP tools. Tool failures are
// returned as error results whose text is the JSON-encoded ToolError.
func NewMCPServer(name string, p Provider) (*server.MCPServer, error) {
	tools, err := p.ListTools(context.Background())
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	s := server.NewMCPServer(name, ServerVersion, server.WithToolCapabilities(false))
	for _, desc := range tools {
		schema, err := json.Marshal(desc.Schema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: encode schema: %w", desc.Name, err)
		}
		toolName := desc.Name
		s.AddTool(mcp.NewToolWithRawSchema(toolName, desc.Description, schema),
			func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				payload, err := json.Marshal(req.GetArguments())
				if err != nil {
					return toolErrorResult(aitools.Errorf(aitools.KindInvalidArgument, "encode arguments: %v", err)), nil
				}
				res := p.Call(ctx, toolName, string(payload))
				if res.Err != nil {
					return toolErrorResult(res.Err), nil
				}
				return mcp.NewToolResultText(string(res.Data)), nil
			})
	}
	return s, nil
}

func toolErrorResult(te *aitools.ToolError) *mcp.CallToolResult {
	b, _ := json.Marshal(te)
	return mcp.NewToolResultError(string(b))
}

// MCPProvider is the host side of an MCP provider connection.
type MCPProvider struct {
	client *mcpclient.Client
}

// NewMCPProvider wraps an initialized MCP client.
func NewMCPProvider(c *mcpclient.Client) *MCPProvider {
	return &MCPProvider{client: c}
}

func (m *MCPProvider) ListTools(ctx context.Context) ([]aitools.ToolDescriptor, error) {
	res, err := m.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}
	out := make([]aitools.ToolDescriptor, 0, len(res.Tools))
	for _, t := range res.Tools {
		raw, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %s: encode schema: %w", t.Name, err)
		}
		var schema aitools.Schema
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("tool %s: decode schema: %w", t.Name, err)
		}
		if schema.Properties == nil {
			schema.Properties = aitools.PropertyMap{}
		}
		out = append(out, aitools.ToolDescriptor{Name: t.Name, Description: t.Description, Schema: schema})
	}
	return out, nil
}

func (m *MCPProvider) Call(ctx context.Context, toolName string, payload string) aitools.Result {
	args, err := aitools.ParsePayload(payload)
	if err != nil {
		return aitools.Fail(err)
	}

	res, err := m.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: toolName, Arguments: args},
	})
	if err != nil {
		if ctx.Err() != nil {
			return aitools.Fail(contextError(ctx, "tools/call "+toolName))
		}
		return aitools.Fail(aitools.Errorf(aitools.KindProviderUnavailable, "tools/call %s: %v", toolName, err))
	}

	text := resultText(res)
	if res.IsError {
		var te aitools.ToolError
		if err := json.Unmarshal([]byte(text), &te); err != nil || te.Kind == "" {
			return aitools.Fail(aitools.Errorf(aitools.KindInternal, "%s", text))
		}
		return aitools.Result{Err: &te}
	}
	if !json.Valid([]byte(text)) {
		return aitools.OK(text)
	}
	return aitools.Result{Data: json.RawMessage(text)}
}

func resultText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func launchMCP(ctx context.Context, spec ProviderSpec, logger hclog.Logger) (*ProviderClient, error) {
	client, err := mcpclient.NewStdioMCPClient(spec.Command, spec.Env, spec.Args...)
	if err != nil {
		return nil, fmt.Errorf("provider %s: failed to start: %w", spec.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: "nlcp", Version: ServerVersion}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		client.Close()
		return nil, fmt.Errorf("provider %s: initialize: %w", spec.Name, err)
	}

	return &ProviderClient{
		name:     spec.Name,
		protocol: ProtocolMCP,
		provider: &MCPProvider{client: client},
		ping:     client.Ping,
		kill: func() {
			if err := client.Close(); err != nil {
				logger.Debug("close mcp provider", "error", err)
			}
		},
	}, nil
}
