package aitools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Registry routes tool calls by name to the tool that owns them. Registration
// is explicit and happens once at startup; lookups are concurrent-safe.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	owners map[string]string

	// CallTimeout bounds a single invocation. Zero means no bound beyond the
	// caller's context.
	CallTimeout time.Duration

	logger hclog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(callTimeout time.Duration, logger hclog.Logger) *Registry {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Registry{
		tools:       make(map[string]Tool),
		owners:      make(map[string]string),
		CallTimeout: callTimeout,
		logger:      logger,
	}
}

// Register adds tools under an owner (usually a provider name). Tool names are
// global: registering a name twice is an error.
func (r *Registry) Register(owner string, tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range tools {
		name := t.ToolName()
		if name == "" {
			return fmt.Errorf("provider %s: tool with empty name", owner)
		}
		if prev, ok := r.owners[name]; ok {
			return fmt.Errorf("tool %q provided by both %s and %s", name, prev, owner)
		}
		r.tools[name] = t
		r.owners[name] = owner
	}
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Owner returns the owner a tool was registered under.
func (r *Registry) Owner(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owners[name]
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Descriptors returns every registered tool descriptor, sorted by name.
func (r *Registry) Descriptors() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Describe(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Invoke validates args against the tool schema and calls the tool. Arguments
// that fail validation never reach the tool. Results are never cached.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) Result {
	t, ok := r.Lookup(name)
	if !ok {
		return Fail(Errorf(KindUnknownTool, "tool %q not found", name))
	}

	schema := t.ToolPayloadSchema()
	args = schema.ApplyDefaults(args)
	if err := schema.Validate(args); err != nil {
		r.logger.Debug("rejected tool arguments", "tool", name, "error", err)
		return Fail(err)
	}

	payload, err := json.Marshal(args)
	if err != nil {
		return Fail(Errorf(KindInvalidArgument, "encode arguments: %v", err))
	}

	callCtx := ctx
	if r.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.CallTimeout)
		defer cancel()
	}

	start := time.Now()
	res := t.Call(callCtx, string(payload))
	if res.Err == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		res = Fail(Errorf(KindProviderTimeout, "tool %q exceeded %s", name, r.CallTimeout))
	}

	if res.Err != nil {
		r.logger.Debug("tool call failed", "tool", name, "kind", res.Err.Kind, "duration", time.Since(start))
	} else {
		r.logger.Debug("tool call complete", "tool", name, "duration", time.Since(start), "bytes", len(res.Data))
	}
	return res
}
