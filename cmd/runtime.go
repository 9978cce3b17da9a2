package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"

	"nlcp/agent"
	"nlcp/aitools"
	"nlcp/config"
	"nlcp/finance"
	"nlcp/plugin"
	"nlcp/store"
)

// runtime is a loaded config with its tool providers running.
type runtime struct {
	cfg        *config.Config
	supervisor *plugin.Supervisor
	registry   *aitools.Registry
	local      []*store.Bundle
	logger     hclog.Logger
}

// startRuntime loads the config at path, starts every provider and registers
// their tools. Any provider failing to start aborts startup.
func startRuntime(ctx context.Context, path string, logger hclog.Logger) (*runtime, error) {
	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	rt := &runtime{
		cfg:        cfg,
		supervisor: plugin.NewSupervisor(logger),
		registry:   aitools.NewRegistry(cfg.Agent.GetCallTimeout(), logger),
		logger:     logger,
	}

	var specs []plugin.ProviderSpec
	for _, p := range cfg.Providers {
		if p.Protocol == config.ProtocolLocal {
			if err := rt.attachLocal(ctx, p); err != nil {
				rt.Close()
				return nil, err
			}
			continue
		}
		spec, err := providerSpec(p, cfg.Storage)
		if err != nil {
			rt.Close()
			return nil, err
		}
		specs = append(specs, spec)
	}
	if err := rt.supervisor.Start(ctx, specs...); err != nil {
		rt.Close()
		return nil, err
	}

	if err := rt.supervisor.Register(rt.registry); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

// attachLocal serves a catalog in-process from the configured stores.
func (rt *runtime) attachLocal(ctx context.Context, p config.ToolProvider) error {
	bundle, err := store.NewBundle(rt.cfg.Storage)
	if err != nil {
		return fmt.Errorf("provider %s: %w", p.Name, err)
	}
	rt.local = append(rt.local, bundle)

	tools, err := finance.CatalogTools(p.Tools, bundle.Clients, bundle.Portfolios)
	if err != nil {
		return fmt.Errorf("provider %s: %w", p.Name, err)
	}
	return rt.supervisor.Attach(ctx, p.Name, plugin.NewStaticProvider(tools...))
}

// providerSpec describes the subprocess for p. Without an explicit command
// the running binary is re-executed with the provider subcommand.
func providerSpec(p config.ToolProvider, storage *config.StorageConfig) (plugin.ProviderSpec, error) {
	command := p.Command
	if command == "" {
		self, err := os.Executable()
		if err != nil {
			return plugin.ProviderSpec{}, fmt.Errorf("provider %s: locate executable: %w", p.Name, err)
		}
		command = self
	}

	env := storage.Environ()
	if logLevel != "" {
		env = append(env, LogLevelEnv+"="+logLevel)
	}
	for k, v := range p.Env {
		env = append(env, k+"="+v)
	}

	return plugin.ProviderSpec{
		Name:     p.Name,
		Protocol: p.Protocol,
		Command:  command,
		Args:     p.CommandArgs(),
		Env:      env,
	}, nil
}

// newAgent builds the agent over the runtime's registry.
func (rt *runtime) newAgent(ctx context.Context, turnLog string) (*agent.Agent, error) {
	return agent.New(ctx, agent.Options{
		Config:      rt.cfg,
		Registry:    rt.registry,
		TurnLogFile: turnLog,
		Logger:      rt.logger,
	})
}

// Close stops providers and releases local stores.
func (rt *runtime) Close() {
	rt.supervisor.Shutdown()
	for _, b := range rt.local {
		if err := b.Close(); err != nil {
			rt.logger.Warn("closing store", "error", err)
		}
	}
}
