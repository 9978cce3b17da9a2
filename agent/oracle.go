package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"nlcp/agent/internal/prompts"
	"nlcp/aitools"
	"nlcp/llm"
)

// ActionKind distinguishes the two things an oracle can propose.
type ActionKind int

const (
	FinalAnswer ActionKind = iota
	ToolCall
)

func (k ActionKind) String() string {
	switch k {
	case FinalAnswer:
		return "final_answer"
	case ToolCall:
		return "tool_call"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is the oracle's decision for one step. Text is set for FinalAnswer;
// Tool and Input are set for ToolCall.
type Action struct {
	Kind      ActionKind
	Reasoning string
	Text      string
	Tool      string
	Input     map[string]any
}

// OracleContext is everything the oracle sees when deciding the next step.
type OracleContext struct {
	UserMessage string
	History     []llm.Message
	Tools       []aitools.ToolDescriptor
	Scratchpad  []Step

	// Rejected is set when the previous response could not be decoded; the
	// oracle is shown its own output and the reason.
	Rejected *DecodeError
}

// Oracle proposes the next action. Implementations decode their backend's
// output into an Action and report undecodable output as a DecodeError.
// They never retry.
type Oracle interface {
	Propose(ctx context.Context, in *OracleContext) (Action, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, in *OracleContext) (Action, error)

func (f OracleFunc) Propose(ctx context.Context, in *OracleContext) (Action, error) {
	return f(ctx, in)
}

const stopMarker = "___STOP___"

// LLMOracle asks a chat model for the next action using the tagged response
// format described in the system prompt.
type LLMOracle struct {
	session *llm.Session
}

// NewLLMOracle builds an oracle over provider/model. The tool catalog is
// rendered into the system prompt once.
func NewLLMOracle(provider llm.Provider, model string, tools []aitools.ToolDescriptor) *LLMOracle {
	session := llm.NewSession(provider, model, SystemPrompt(tools))
	session.SetStopSequences([]string{stopMarker})
	return &LLMOracle{session: session}
}

// Session exposes the underlying session for tuning (max tokens, turn log).
func (o *LLMOracle) Session() *llm.Session {
	return o.session
}

func (o *LLMOracle) Propose(ctx context.Context, in *OracleContext) (Action, error) {
	resp, err := o.session.Send(ctx, BuildTranscript(in))
	if err != nil {
		return Action{}, err
	}
	output := strings.TrimSpace(resp.Content)
	output = strings.TrimSpace(strings.TrimSuffix(output, stopMarker))
	return DecodeAction(output)
}

// BuildTranscript renders the oracle context as chat messages: the caller's
// history, the user message, then one assistant/observation pair per
// executed step.
func BuildTranscript(in *OracleContext) *llm.Transcript {
	t := llm.NewTranscript(in.History, in.UserMessage)
	for _, step := range in.Scratchpad {
		t.Add(llm.RoleAssistant, formatStep(step))
		t.Add(llm.RoleUser, "<OBSERVATION>\n"+step.Observation+"\n</OBSERVATION>")
	}
	if in.Rejected != nil {
		t.Add(llm.RoleAssistant, in.Rejected.Output)
		t.Add(llm.RoleUser, prompts.FormatReminder(in.Rejected.Reason))
	}
	return t
}

func formatStep(step Step) string {
	var b strings.Builder
	if step.Reasoning != "" {
		fmt.Fprintf(&b, "<REASONING>\n%s\n</REASONING>\n", step.Reasoning)
	}
	fmt.Fprintf(&b, "<ACTION>%s</ACTION>\n<ACTION_INPUT>%s</ACTION_INPUT>", step.Tool, encodeInput(step.Input))
	return b.String()
}

// encodeInput renders tool arguments as JSON, using {} when there are none
// or they cannot be encoded.
func encodeInput(input map[string]any) string {
	if input == nil {
		return "{}"
	}
	b, err := json.Marshal(input)
	if err != nil {
		return "{}"
	}
	return string(b)
}
