package config

import (
	"fmt"
	"slices"
)

// Transports a tool provider can be reached over.
const (
	ProtocolPlugin = "plugin" // go-plugin net/rpc subprocess
	ProtocolMCP    = "mcp"    // MCP over stdio subprocess
	ProtocolLocal  = "local"  // in-process
)

// Tool catalogs a provider can serve.
const (
	CatalogClients    = "clients"
	CatalogPortfolios = "portfolios"
)

// ToolProvider declares one tool provider process.
//
//	provider "portfolios" {
//	  protocol = "mcp"
//	  tools    = "portfolios"
//	}
//
// Command defaults to the running binary, started as
// `<command> provider <tools> --protocol <protocol>`.
type ToolProvider struct {
	Name     string            `hcl:"name,label"`
	Protocol string            `hcl:"protocol,optional"`
	Tools    string            `hcl:"tools,optional"`
	Command  string            `hcl:"command,optional"`
	Args     []string          `hcl:"args,optional"`
	Env      map[string]string `hcl:"env,optional"`
}

// Defaults fills in default values for unset fields
func (p *ToolProvider) Defaults() {
	if p.Protocol == "" {
		p.Protocol = ProtocolPlugin
	}
	if p.Tools == "" {
		p.Tools = p.Name
	}
}

// Validate checks that the provider configuration is valid
func (p *ToolProvider) Validate() error {
	protocols := []string{ProtocolPlugin, ProtocolMCP, ProtocolLocal}
	if !slices.Contains(protocols, p.Protocol) {
		return fmt.Errorf("unknown protocol %q (expected one of %v)", p.Protocol, protocols)
	}
	catalogs := []string{CatalogClients, CatalogPortfolios}
	if !slices.Contains(catalogs, p.Tools) {
		return fmt.Errorf("unknown tool catalog %q (expected one of %v)", p.Tools, catalogs)
	}
	if p.Protocol == ProtocolLocal && (p.Command != "" || len(p.Args) > 0) {
		return fmt.Errorf("protocol 'local' runs in-process and takes no command")
	}
	return nil
}

// CommandArgs returns the arguments the provider subprocess is started
// with when no explicit args are configured.
func (p *ToolProvider) CommandArgs() []string {
	if len(p.Args) > 0 {
		return p.Args
	}
	return []string{"provider", p.Tools, "--protocol", p.Protocol}
}
