package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"nlcp/aitools"
	"nlcp/llm"
	"nlcp/streamers"
)

// State is a position in the turn state machine.
type State string

const (
	StateThinking  State = "Thinking"
	StateActing    State = "Acting"
	StateObserving State = "Observing"
	StateDone      State = "Done"
	StateFailed    State = "Failed"
)

// FailureKind classifies a turn that ended without an answer.
type FailureKind string

const (
	FailureIterationLimit    FailureKind = "IterationLimitExceeded"
	FailureOracleDecode      FailureKind = "OracleDecodeError"
	FailureOracleUnavailable FailureKind = "OracleUnavailable"
	FailureTurnTimeout       FailureKind = "TurnTimeout"
	FailureCanceled          FailureKind = "Canceled"
)

// Failure describes why a turn ended in StateFailed.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

// Step is one executed tool call and the observation it produced.
type Step struct {
	Iteration   int               `json:"iteration"`
	Reasoning   string            `json:"reasoning,omitempty"`
	Tool        string            `json:"tool"`
	Input       map[string]any    `json:"input"`
	Observation string            `json:"observation"`
	ErrorKind   aitools.ErrorKind `json:"error_kind,omitempty"`
}

// TurnResult is what a caller gets back for every turn, answered or not.
// FinalText is the answer, or a human-readable explanation on failure.
// Response is FinalText as JSON when it parses as JSON, otherwise a JSON
// string.
type TurnResult struct {
	TurnID    string          `json:"turn_id"`
	State     State           `json:"state"`
	FinalText string          `json:"final_text"`
	Response  json.RawMessage `json:"response"`
	Trace     []Step          `json:"trace"`
	Failure   *Failure        `json:"failure,omitempty"`
}

// toolInvoker is the part of the tool registry the loop needs.
type toolInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) aitools.Result
	Descriptors() []aitools.ToolDescriptor
}

// orchestrator runs one turn. A new orchestrator is built per turn, so it
// holds no state shared between requests.
type orchestrator struct {
	oracle        Oracle
	tools         toolInvoker
	handler       streamers.TurnHandler
	maxIterations int
	turnTimeout   time.Duration
	logger        hclog.Logger
}

func newOrchestrator(oracle Oracle, tools toolInvoker, handler streamers.TurnHandler, maxIterations int, turnTimeout time.Duration, logger hclog.Logger) *orchestrator {
	if handler == nil {
		handler = streamers.Nop{}
	}
	return &orchestrator{
		oracle:        oracle,
		tools:         tools,
		handler:       handler,
		maxIterations: maxIterations,
		turnTimeout:   turnTimeout,
		logger:        logger,
	}
}

// processTurn drives Thinking -> Acting -> Observing until the oracle answers
// or the turn fails. At most maxIterations tool calls are executed.
func (o *orchestrator) processTurn(ctx context.Context, turnID, userMessage string, history []llm.Message) TurnResult {
	if o.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.turnTimeout)
		defer cancel()
	}

	res := TurnResult{TurnID: turnID, Trace: []Step{}}
	in := &OracleContext{
		UserMessage: userMessage,
		History:     history,
		Tools:       o.tools.Descriptors(),
	}
	decodeRetried := false

	for {
		// Thinking
		if err := ctx.Err(); err != nil {
			return o.fail(res, o.contextFailure(err))
		}
		o.logger.Debug("state", "state", StateThinking, "iteration", len(res.Trace))
		o.handler.Thinking(len(res.Trace))

		action, err := o.oracle.Propose(ctx, in)
		if err != nil {
			if errors.Is(err, ErrOracleDecode) {
				if decodeRetried {
					return o.fail(res, &Failure{
						Kind:    FailureOracleDecode,
						Message: "The assistant's reply could not be understood after a retry: " + err.Error(),
					})
				}
				o.logger.Warn("oracle output rejected, re-prompting", "error", err)
				decodeRetried = true
				in.Rejected = asDecodeError(err)
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return o.fail(res, o.contextFailure(ctxErr))
			}
			o.logger.Error("oracle call failed", "error", err)
			return o.fail(res, &Failure{
				Kind:    FailureOracleUnavailable,
				Message: "The reasoning service is unavailable: " + err.Error(),
			})
		}
		decodeRetried = false
		in.Rejected = nil

		if action.Reasoning != "" {
			o.handler.Reasoning(action.Reasoning)
		}

		if action.Kind == FinalAnswer {
			return o.done(res, action.Text)
		}

		if len(res.Trace) >= o.maxIterations {
			o.logger.Warn("iteration limit reached", "limit", o.maxIterations, "tool", action.Tool)
			res = o.fail(res, &Failure{
				Kind:    FailureIterationLimit,
				Message: fmt.Sprintf("stopped after %d tool calls without a final answer", o.maxIterations),
			})
			res.FinalText = partialAnswer(res.Trace, o.maxIterations)
			res.Response = responseBody(res.FinalText)
			return res
		}

		// Acting
		o.logger.Debug("state", "state", StateActing, "tool", action.Tool, "iteration", len(res.Trace))
		o.handler.CallingTool(action.Tool, encodeInput(action.Input))

		start := time.Now()
		result := o.tools.Invoke(ctx, action.Tool, action.Input)
		observation := result.Observation()

		// Observing
		step := Step{
			Iteration:   len(res.Trace),
			Reasoning:   action.Reasoning,
			Tool:        action.Tool,
			Input:       action.Input,
			Observation: observation,
		}
		if result.Err != nil {
			step.ErrorKind = result.Err.Kind
		}
		o.logger.Debug("state", "state", StateObserving, "tool", action.Tool, "duration", time.Since(start), "failed", result.Failed())
		o.handler.ToolComplete(action.Tool, observation, result.Failed())

		res.Trace = append(res.Trace, step)
		in.Scratchpad = res.Trace
	}
}

func (o *orchestrator) done(res TurnResult, text string) TurnResult {
	res.State = StateDone
	res.FinalText = text
	res.Response = responseBody(text)
	o.logger.Debug("state", "state", StateDone, "iterations", len(res.Trace))
	o.handler.Answer(text)
	return res
}

func (o *orchestrator) fail(res TurnResult, f *Failure) TurnResult {
	res.State = StateFailed
	res.Failure = f
	res.FinalText = f.Message
	res.Response = responseBody(f.Message)
	o.logger.Debug("state", "state", StateFailed, "kind", f.Kind, "iterations", len(res.Trace))
	o.handler.Failed(string(f.Kind), f.Message)
	return res
}

func (o *orchestrator) contextFailure(err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{
			Kind:    FailureTurnTimeout,
			Message: fmt.Sprintf("The request did not finish within its time budget of %s.", o.turnTimeout),
		}
	}
	return &Failure{Kind: FailureCanceled, Message: "The request was canceled."}
}

func asDecodeError(err error) *DecodeError {
	var de *DecodeError
	if errors.As(err, &de) {
		return de
	}
	return &DecodeError{Reason: err.Error()}
}

const partialObservationLen = 300

// partialAnswer summarises what the executed steps found.
func partialAnswer(steps []Step, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I could not finish answering within %d tool calls.", limit)

	var found []Step
	for _, s := range steps {
		if s.ErrorKind == "" {
			found = append(found, s)
		}
	}
	if len(found) == 0 {
		b.WriteString(" No data was retrieved.")
		return b.String()
	}

	b.WriteString(" Partial results:")
	for _, s := range found {
		obs := s.Observation
		if len(obs) > partialObservationLen {
			obs = obs[:partialObservationLen] + "..."
		}
		fmt.Fprintf(&b, "\n- %s: %s", s.Tool, obs)
	}
	return b.String()
}

// responseBody returns text as-is when it is JSON, otherwise as a JSON string.
func responseBody(text string) json.RawMessage {
	trimmed := strings.TrimSpace(text)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	b, _ := json.Marshal(text)
	return b
}
