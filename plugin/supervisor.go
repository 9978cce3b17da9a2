package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"

	"nlcp/aitools"
)

// Supervisor owns every provider process: it spawns them, reports their
// health and shuts them all down exactly once.
type Supervisor struct {
	logger hclog.Logger

	mu      sync.Mutex
	clients []*ProviderClient
	stopped bool
}

func NewSupervisor(logger hclog.Logger) *Supervisor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Supervisor{logger: logger}
}

// Start launches the given providers in order. If any provider cannot be
// reached or exposes no tools, every provider started so far is shut down and
// the error is returned.
func (s *Supervisor) Start(ctx context.Context, specs ...ProviderSpec) error {
	for _, spec := range specs {
		pc, err := Launch(ctx, spec, s.logger)
		if err != nil {
			s.Shutdown()
			return err
		}
		if err := s.add(pc); err != nil {
			pc.Close()
			s.Shutdown()
			return err
		}
		s.logger.Info("provider started", "provider", spec.Name, "protocol", pc.Protocol(), "tools", len(pc.ListTools()))
	}
	return nil
}

// Attach adds an in-process provider.
func (s *Supervisor) Attach(ctx context.Context, name string, p Provider) error {
	pc, err := NewLocalClient(ctx, name, p)
	if err != nil {
		return err
	}
	return s.add(pc)
}

func (s *Supervisor) add(pc *ProviderClient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return fmt.Errorf("supervisor is shut down")
	}
	for _, existing := range s.clients {
		if existing.Name() == pc.Name() {
			return fmt.Errorf("provider %s started twice", pc.Name())
		}
	}
	s.clients = append(s.clients, pc)
	return nil
}

// Providers returns the running providers.
func (s *Supervisor) Providers() []*ProviderClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*ProviderClient(nil), s.clients...)
}

// Register adds every discovered tool to the registry under its provider.
func (s *Supervisor) Register(reg *aitools.Registry) error {
	for _, pc := range s.Providers() {
		if err := reg.Register(pc.Name(), pc.Tools()...); err != nil {
			return err
		}
	}
	return nil
}

// Health pings every provider. The map holds nil for healthy providers;
// failures are also logged.
func (s *Supervisor) Health(ctx context.Context) map[string]error {
	providers := s.Providers()
	out := make(map[string]error, len(providers))
	for _, pc := range providers {
		err := pc.Ping(ctx)
		if err != nil {
			s.logger.Warn("provider unhealthy", "provider", pc.Name(), "error", err)
		}
		out[pc.Name()] = err
	}
	return out
}

// Shutdown closes every provider. Later calls are no-ops.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	clients := s.clients
	s.clients = nil
	s.mu.Unlock()

	for i := len(clients) - 1; i >= 0; i-- {
		s.logger.Debug("stopping provider", "provider", clients[i].Name())
		clients[i].Close()
	}
	goplugin.CleanupClients()
}
