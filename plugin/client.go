package plugin

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"

	"nlcp/aitools"
)

// Transport protocols a provider process can speak.
const (
	ProtocolPlugin = "plugin"
	ProtocolMCP    = "mcp"
)

// ProviderSpec describes how to start one provider process.
type ProviderSpec struct {
	Name     string
	Protocol string
	Command  string
	Args     []string
	Env      []string
}

// ProviderClient is the host's handle on one running provider.
type ProviderClient struct {
	name     string
	protocol string
	provider Provider
	tools    []aitools.ToolDescriptor
	ping     func(ctx context.Context) error
	kill     func()
	once     sync.Once
}

// Launch starts a provider process, connects to it and discovers its tools.
// A provider that exposes no tools is an error.
func Launch(ctx context.Context, spec ProviderSpec, logger hclog.Logger) (*ProviderClient, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("plugin." + spec.Name)

	var (
		pc  *ProviderClient
		err error
	)
	switch spec.Protocol {
	case ProtocolPlugin, "":
		pc, err = launchPlugin(spec, logger)
	case ProtocolMCP:
		pc, err = launchMCP(ctx, spec, logger)
	default:
		return nil, fmt.Errorf("provider %s: unknown protocol %q", spec.Name, spec.Protocol)
	}
	if err != nil {
		return nil, err
	}

	if err := pc.discover(ctx); err != nil {
		pc.Close()
		return nil, err
	}
	logger.Debug("provider ready", "protocol", pc.protocol, "tools", len(pc.tools))
	return pc, nil
}

func launchPlugin(spec ProviderSpec, logger hclog.Logger) (*ProviderClient, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Env = spec.Env

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginMap,
		Cmd:              cmd,
		Logger:           logger,
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
		Managed:          true,
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("provider %s: failed to connect: %w", spec.Name, err)
	}

	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("provider %s: failed to dispense: %w", spec.Name, err)
	}

	provider, ok := raw.(Provider)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("provider %s: plugin does not implement Provider", spec.Name)
	}

	return &ProviderClient{
		name:     spec.Name,
		protocol: ProtocolPlugin,
		provider: provider,
		ping: func(context.Context) error {
			if client.Exited() {
				return fmt.Errorf("provider %s: process exited", spec.Name)
			}
			return rpcClient.Ping()
		},
		kill: client.Kill,
	}, nil
}

// NewLocalClient wraps an in-process provider in the same handle the
// supervisor uses for subprocesses.
func NewLocalClient(ctx context.Context, name string, p Provider) (*ProviderClient, error) {
	pc := &ProviderClient{
		name:     name,
		protocol: "local",
		provider: p,
		ping:     func(context.Context) error { return nil },
		kill:     func() {},
	}
	if err := pc.discover(ctx); err != nil {
		return nil, err
	}
	return pc, nil
}

func (p *ProviderClient) discover(ctx context.Context) error {
	tools, err := p.provider.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("provider %s: discover tools: %w", p.name, err)
	}
	if len(tools) == 0 {
		return fmt.Errorf("provider %s: exposes no tools", p.name)
	}
	p.tools = tools
	return nil
}

// Name returns the provider name
func (p *ProviderClient) Name() string {
	return p.name
}

// Protocol returns the transport the provider speaks.
func (p *ProviderClient) Protocol() string {
	return p.protocol
}

// ListTools returns the descriptors discovered at launch.
func (p *ProviderClient) ListTools() []aitools.ToolDescriptor {
	return p.tools
}

// Call invokes a tool on the provider
func (p *ProviderClient) Call(ctx context.Context, toolName string, payload string) aitools.Result {
	return p.provider.Call(ctx, toolName, payload)
}

// Tools returns aitools.Tool proxies for every discovered tool.
func (p *ProviderClient) Tools() []aitools.Tool {
	tools := make([]aitools.Tool, len(p.tools))
	for i, info := range p.tools {
		tools[i] = NewPluginTool(p, info)
	}
	return tools
}

// Ping checks that the provider is still reachable.
func (p *ProviderClient) Ping(ctx context.Context) error {
	return p.ping(ctx)
}

// Close shuts down the provider. It is safe to call more than once.
func (p *ProviderClient) Close() {
	p.once.Do(p.kill)
}
