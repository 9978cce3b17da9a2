package config

import (
	"fmt"
	"time"
)

// Loop defaults used when the agent block leaves a setting unset.
const (
	DefaultMaxIterations = 10
	DefaultCallTimeout   = 15 * time.Second
	DefaultTurnTimeout   = 90 * time.Second
)

// Agent configures the orchestration loop and the model behind it.
type Agent struct {
	// Model is a model key exposed by a model block, e.g. models.gemini.gemini_2_0_flash
	Model         string `hcl:"model"`
	MaxIterations int    `hcl:"max_iterations,optional"`
	CallTimeout   string `hcl:"call_timeout,optional"` // per tool call, e.g. "15s"
	TurnTimeout   string `hcl:"turn_timeout,optional"` // whole turn, e.g. "90s"
	MaxTokens     int    `hcl:"max_tokens,optional"`
	// TurnLog enables per-call transcript snapshots to a JSONL file
	TurnLog string `hcl:"turn_log,optional"`
}

// GetMaxIterations returns the tool call bound per turn.
func (a *Agent) GetMaxIterations() int {
	if a.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return a.MaxIterations
}

// GetCallTimeout returns the per tool call timeout.
func (a *Agent) GetCallTimeout() time.Duration {
	return durationOr(a.CallTimeout, DefaultCallTimeout)
}

// GetTurnTimeout returns the whole-turn budget.
func (a *Agent) GetTurnTimeout() time.Duration {
	return durationOr(a.TurnTimeout, DefaultTurnTimeout)
}

// Validate checks that the agent configuration is valid
func (a *Agent) Validate() error {
	if a.Model == "" {
		return fmt.Errorf("model is required")
	}
	if a.MaxIterations < 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", a.MaxIterations)
	}
	if a.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", a.MaxTokens)
	}
	if err := validDuration("call_timeout", a.CallTimeout); err != nil {
		return err
	}
	return validDuration("turn_timeout", a.TurnTimeout)
}

// ResolveModel finds the Model config that matches this agent's model key
// and returns it with the provider's model identifier.
func (a *Agent) ResolveModel(models []Model) (*Model, string, error) {
	for i := range models {
		m := &models[i]
		supportedModels, ok := SupportedModels[m.Provider]
		if !ok {
			continue
		}

		for _, allowedKey := range m.AllowedModels {
			if allowedKey == a.Model {
				actualModel, ok := supportedModels[a.Model]
				if !ok {
					return nil, "", fmt.Errorf("model key '%s' not found in supported models for provider '%s'", a.Model, m.Provider)
				}
				return m, actualModel, nil
			}
		}
	}

	return nil, "", fmt.Errorf("no model config found for model '%s'", a.Model)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func validDuration(field, s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, s)
	}
	return nil
}
