package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// Config holds all configuration
type Config struct {
	Variables []Variable     `hcl:"variable,block"`
	Models    []Model        `hcl:"model,block"`
	Storage   *StorageConfig `hcl:"storage,block"`
	Providers []ToolProvider `hcl:"provider,block"`
	Agent     *Agent         `hcl:"agent,block"`
	Server    *Server        `hcl:"server,block"`

	// ResolvedVars holds the resolved variable values for runtime use
	ResolvedVars map[string]cty.Value `hcl:"-"`
}

func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return LoadDir(path)
	}
	return LoadFile(path)
}

// LoadAndValidate loads the config and validates all components
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all config components are valid
func (c *Config) Validate() error {
	for _, v := range c.Variables {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("variable '%s': %w", v.Name, err)
		}
	}

	for _, m := range c.Models {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("model '%s': %w", m.Name, err)
		}
	}

	if c.Storage != nil {
		if err := c.Storage.Validate(); err != nil {
			return err
		}
	}

	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider block is required")
	}
	seen := make(map[string]bool)
	for _, p := range c.Providers {
		if seen[p.Name] {
			return fmt.Errorf("provider '%s': declared more than once", p.Name)
		}
		seen[p.Name] = true
		if err := p.Validate(); err != nil {
			return fmt.Errorf("provider '%s': %w", p.Name, err)
		}
	}

	if c.Agent == nil {
		return fmt.Errorf("an agent block is required")
	}
	if err := c.Agent.Validate(); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if _, _, err := c.Agent.ResolveModel(c.Models); err != nil {
		return fmt.Errorf("agent: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	return nil
}

func LoadFile(filename string) (*Config, error) {
	return loadFromFiles([]string{filename})
}

func LoadDir(dir string) (*Config, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.hcl"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl files in %s", dir)
	}
	return loadFromFiles(files)
}

// parsedBlocks holds all blocks extracted from a file in one pass
type parsedBlocks struct {
	Variables []*hcl.Block
	Models    []*hcl.Block
	Storage   []*hcl.Block
	Providers []*hcl.Block
	Agent     []*hcl.Block
	Server    []*hcl.Block
}

// loadFromFiles implements staged loading: variables → models → storage →
// providers → agent and server. Each stage sees the namespaces built by the
// stages before it.
func loadFromFiles(files []string) (*Config, error) {
	parser := hclparse.NewParser()
	var all parsedBlocks

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parse %s: %w", file, diags)
		}

		content, diags := hclFile.Body.Content(&hcl.BodySchema{
			Blocks: []hcl.BlockHeaderSchema{
				{Type: "variable", LabelNames: []string{"name"}},
				{Type: "model", LabelNames: []string{"name"}},
				{Type: "storage"},
				{Type: "provider", LabelNames: []string{"name"}},
				{Type: "agent"},
				{Type: "server"},
			},
		})
		if diags.HasErrors() {
			return nil, fmt.Errorf("read %s: %w", file, diags)
		}

		for _, block := range content.Blocks {
			switch block.Type {
			case "variable":
				all.Variables = append(all.Variables, block)
			case "model":
				all.Models = append(all.Models, block)
			case "storage":
				all.Storage = append(all.Storage, block)
			case "provider":
				all.Providers = append(all.Providers, block)
			case "agent":
				all.Agent = append(all.Agent, block)
			case "server":
				all.Server = append(all.Server, block)
			}
		}
	}

	for _, single := range []struct {
		name   string
		blocks []*hcl.Block
	}{{"storage", all.Storage}, {"agent", all.Agent}, {"server", all.Server}} {
		if len(single.blocks) > 1 {
			return nil, fmt.Errorf("%s block declared %d times; only one is allowed", single.name, len(single.blocks))
		}
	}

	// Stage 1: variables (no context needed)
	var allVars []Variable
	for _, block := range all.Variables {
		var v Variable
		v.Name = block.Labels[0]
		if diags := gohcl.DecodeBody(block.Body, nil, &v); diags.HasErrors() {
			return nil, fmt.Errorf("decode variable %s: %w", v.Name, diags)
		}
		allVars = append(allVars, v)
	}
	varsCtx, resolvedVars, err := buildVarsContext(allVars)
	if err != nil {
		return nil, err
	}

	// Stage 2: models (vars)
	var allModels []Model
	for _, block := range all.Models {
		var m Model
		m.Name = block.Labels[0]
		if diags := gohcl.DecodeBody(block.Body, varsCtx, &m); diags.HasErrors() {
			return nil, fmt.Errorf("decode model %s: %w", m.Name, diags)
		}
		allModels = append(allModels, m)
	}
	modelsCtx := buildModelsContext(varsCtx, allModels)

	// Stage 3: storage (vars)
	storage := &StorageConfig{}
	for _, block := range all.Storage {
		if diags := gohcl.DecodeBody(block.Body, varsCtx, storage); diags.HasErrors() {
			return nil, fmt.Errorf("decode storage: %w", diags)
		}
	}
	storage.Defaults()

	// Stage 4: providers (vars)
	var allProviders []ToolProvider
	for _, block := range all.Providers {
		var p ToolProvider
		p.Name = block.Labels[0]
		if diags := gohcl.DecodeBody(block.Body, varsCtx, &p); diags.HasErrors() {
			return nil, fmt.Errorf("decode provider %s: %w", p.Name, diags)
		}
		p.Defaults()
		allProviders = append(allProviders, p)
	}

	// Stage 5: agent and server (vars + models)
	var agent *Agent
	for _, block := range all.Agent {
		agent = &Agent{}
		if diags := gohcl.DecodeBody(block.Body, modelsCtx, agent); diags.HasErrors() {
			return nil, fmt.Errorf("decode agent: %w", diags)
		}
	}

	server := &Server{}
	for _, block := range all.Server {
		if diags := gohcl.DecodeBody(block.Body, varsCtx, server); diags.HasErrors() {
			return nil, fmt.Errorf("decode server: %w", diags)
		}
	}
	server.Defaults()

	return &Config{
		Variables:    allVars,
		Models:       allModels,
		Storage:      storage,
		Providers:    allProviders,
		Agent:        agent,
		Server:       server,
		ResolvedVars: resolvedVars,
	}, nil
}

// buildVarsContext creates context with just vars
func buildVarsContext(vars []Variable) (*hcl.EvalContext, map[string]cty.Value, error) {
	fileVars, err := LoadVarsFromFile()
	if err != nil {
		return nil, nil, fmt.Errorf("read vars file: %w", err)
	}

	varsMap := make(map[string]cty.Value)
	for i := range vars {
		varsMap[vars[i].Name] = cty.StringVal(resolveValue(&vars[i], fileVars))
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"vars": cty.ObjectVal(varsMap),
		},
	}, varsMap, nil
}

// buildModelsContext adds models to existing context
func buildModelsContext(ctx *hcl.EvalContext, models []Model) *hcl.EvalContext {
	modelsMap := make(map[string]cty.Value)
	for _, m := range models {
		providerModels := make(map[string]cty.Value)
		for _, modelKey := range m.AllowedModels {
			providerModels[modelKey] = cty.StringVal(modelKey)
		}
		modelsMap[m.Name] = cty.ObjectVal(providerModels)
	}

	newVars := make(map[string]cty.Value)
	for k, v := range ctx.Variables {
		newVars[k] = v
	}
	newVars["models"] = cty.ObjectVal(modelsMap)

	return &hcl.EvalContext{
		Variables: newVars,
	}
}
