package plugin

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
)

// Serve runs a provider process. It blocks until the host disconnects.
func Serve(name string, p Provider, protocol string, logger hclog.Logger) error {
	switch protocol {
	case ProtocolPlugin, "":
		goplugin.Serve(&goplugin.ServeConfig{
			HandshakeConfig: Handshake,
			Plugins: map[string]goplugin.Plugin{
				PluginName: &ProviderPlugin{Impl: p},
			},
			Logger: logger,
		})
		return nil
	case ProtocolMCP:
		return ServeMCP(name, p)
	default:
		return fmt.Errorf("unknown provider protocol %q", protocol)
	}
}
