package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"nlcp/aitools"
	"nlcp/config"
	"nlcp/llm"
	"nlcp/streamers"
)

// DefaultMaxIterations bounds tool calls per turn when none is configured.
const DefaultMaxIterations = 10

// ErrEmptyMessage is returned by HandleTurn for a blank user message.
var ErrEmptyMessage = errors.New("user message is empty")

type turnIDKey struct{}

// WithTurnID makes a turn started with ctx run under id instead of a fresh
// uuid, so callers can correlate streamed events before the result returns.
func WithTurnID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, turnIDKey{}, id)
}

// Agent answers user messages by running the orchestration loop against a
// shared tool registry. It is safe for concurrent use.
type Agent struct {
	ModelName string

	oracle        Oracle
	tools         toolInvoker
	maxIterations int
	turnTimeout   time.Duration
	logger        hclog.Logger
	provider      llm.Provider
	turnLogger    *llm.TurnLogger
}

// Options for creating an agent
type Options struct {
	// Config supplies the model and loop settings. Required unless Oracle is set.
	Config *config.Config
	// Registry holds every tool the agent may call
	Registry *aitools.Registry
	// Oracle overrides the model configured in Config
	Oracle Oracle
	// MaxIterations and TurnTimeout override Config when non-zero
	MaxIterations int
	TurnTimeout   time.Duration
	// TurnLogFile enables per-call transcript snapshots to a JSONL file (optional)
	TurnLogFile string
	Logger      hclog.Logger
}

// New creates an agent. Without an explicit Oracle the configured model
// provider is created and given the registry's catalog in its system prompt.
func New(ctx context.Context, opts Options) (*Agent, error) {
	if opts.Registry == nil {
		return nil, errors.New("agent: tool registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	a := &Agent{
		oracle:        opts.Oracle,
		tools:         opts.Registry,
		maxIterations: DefaultMaxIterations,
		logger:        logger.Named("agent"),
	}

	if opts.Config != nil && opts.Config.Agent != nil {
		a.maxIterations = opts.Config.Agent.GetMaxIterations()
		a.turnTimeout = opts.Config.Agent.GetTurnTimeout()
	}
	if opts.MaxIterations > 0 {
		a.maxIterations = opts.MaxIterations
	}
	if opts.TurnTimeout > 0 {
		a.turnTimeout = opts.TurnTimeout
	}

	if a.oracle == nil {
		if err := a.buildOracle(ctx, opts); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) buildOracle(ctx context.Context, opts Options) error {
	if opts.Config == nil || opts.Config.Agent == nil {
		return errors.New("agent: an agent block or an explicit oracle is required")
	}
	agentCfg := opts.Config.Agent

	modelConfig, actualModelName, err := agentCfg.ResolveModel(opts.Config.Models)
	if err != nil {
		return fmt.Errorf("resolving model: %w", err)
	}
	if modelConfig.APIKey == "" {
		return fmt.Errorf("API key not set for model '%s'", modelConfig.Name)
	}

	provider, err := llm.NewProvider(ctx, string(modelConfig.Provider), modelConfig.APIKey)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}

	oracle := NewLLMOracle(provider, actualModelName, opts.Registry.Descriptors())
	oracle.Session().SetMaxTokens(agentCfg.MaxTokens)

	turnLog := opts.TurnLogFile
	if turnLog == "" {
		turnLog = agentCfg.TurnLog
	}
	if turnLog != "" {
		tl, err := llm.NewTurnLogger(turnLog)
		if err != nil {
			a.logger.Warn("could not open turn log", "path", turnLog, "error", err)
		} else {
			oracle.Session().SetTurnLogger(tl)
			a.turnLogger = tl
		}
	}

	a.oracle = oracle
	a.provider = provider
	a.ModelName = actualModelName
	return nil
}

// Close releases resources held by the agent
func (a *Agent) Close() {
	if a.turnLogger != nil {
		a.turnLogger.Close()
	}
	if closer, ok := a.provider.(interface{ Close() error }); ok {
		closer.Close()
	}
}

// MaxIterations returns the per-turn tool call bound.
func (a *Agent) MaxIterations() int {
	return a.maxIterations
}

// Tools returns the descriptors the oracle can choose from.
func (a *Agent) Tools() []aitools.ToolDescriptor {
	return a.tools.Descriptors()
}

// HandleTurn answers one user message given the prior conversation. history
// is read, never modified. The returned error is non-nil only for invalid
// input; every other outcome, including failures, is reported in TurnResult.
func (a *Agent) HandleTurn(ctx context.Context, userMessage string, history []llm.Message) (TurnResult, error) {
	return a.Stream(ctx, userMessage, history, nil)
}

// Stream is HandleTurn with progress events published to handler.
func (a *Agent) Stream(ctx context.Context, userMessage string, history []llm.Message, handler streamers.TurnHandler) (TurnResult, error) {
	if strings.TrimSpace(userMessage) == "" {
		return TurnResult{}, ErrEmptyMessage
	}

	turnID, _ := ctx.Value(turnIDKey{}).(string)
	if turnID == "" {
		turnID = uuid.NewString()
	}
	logger := a.logger.With("turn_id", turnID)
	start := time.Now()

	o := newOrchestrator(a.oracle, a.tools, handler, a.maxIterations, a.turnTimeout, logger)
	res := o.processTurn(ctx, turnID, userMessage, history)

	logger.Info("turn finished", "state", res.State, "iterations", len(res.Trace), "duration", time.Since(start))
	return res, nil
}
