package plugin

import (
	"context"
	"encoding/json"
	"net/rpc"
	"sort"

	goplugin "github.com/hashicorp/go-plugin"

	"nlcp/aitools"
)

// Handshake is the handshake config shared by the host and provider processes.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "NLCP_PROVIDER",
	MagicCookieValue: "c1f4a5e2-portfolio-tools",
}

// PluginName is the name providers are dispensed under.
const PluginName = "provider"

// PluginMap is the map of plugins we can dispense
var PluginMap = map[string]goplugin.Plugin{
	PluginName: &ProviderPlugin{},
}

// Provider is a capability-scoped tool host: a fixed catalog of tools reachable
// by name.
type Provider interface {
	// ListTools returns the provider's tool catalog
	ListTools(ctx context.Context) ([]aitools.ToolDescriptor, error)

	// Call invokes a tool with a JSON object payload
	Call(ctx context.Context, toolName string, payload string) aitools.Result
}

// ProviderPlugin adapts a Provider to go-plugin's net/rpc protocol.
type ProviderPlugin struct {
	Impl Provider
}

func (p *ProviderPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &RPCServer{Impl: p.Impl}, nil
}

func (*ProviderPlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return NewRPCClient(c), nil
}

// StaticProvider serves a fixed set of in-process tools.
type StaticProvider struct {
	tools map[string]aitools.Tool
}

// NewStaticProvider builds a provider from explicitly registered tools.
func NewStaticProvider(tools ...aitools.Tool) *StaticProvider {
	p := &StaticProvider{tools: make(map[string]aitools.Tool, len(tools))}
	for _, t := range tools {
		p.tools[t.ToolName()] = t
	}
	return p
}

func (p *StaticProvider) ListTools(context.Context) ([]aitools.ToolDescriptor, error) {
	out := make([]aitools.ToolDescriptor, 0, len(p.tools))
	for _, t := range p.tools {
		out = append(out, aitools.Describe(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (p *StaticProvider) Call(ctx context.Context, toolName string, payload string) aitools.Result {
	t, ok := p.tools[toolName]
	if !ok {
		return aitools.Fail(aitools.Errorf(aitools.KindUnknownTool, "tool %q not found", toolName))
	}
	return t.Call(ctx, payload)
}

func encodeDescriptors(tools []aitools.ToolDescriptor) ([]byte, error) {
	return json.Marshal(tools)
}

func decodeDescriptors(b []byte) ([]aitools.ToolDescriptor, error) {
	var tools []aitools.ToolDescriptor
	if err := json.Unmarshal(b, &tools); err != nil {
		return nil, err
	}
	return tools, nil
}
