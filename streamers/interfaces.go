package streamers

// TurnHandler receives progress events from one orchestration turn.
// Different implementations render to a terminal, a websocket, or memory.
type TurnHandler interface {
	// Thinking is called before every oracle call
	Thinking(iteration int)

	// Reasoning carries the oracle's free-text reasoning, when it gave any
	Reasoning(text string)

	// CallingTool is called when the loop invokes a tool
	CallingTool(toolName string, payload string)

	// ToolComplete is called with the observation fed back to the oracle
	ToolComplete(toolName string, observation string, failed bool)

	// Answer is called once with the final answer
	Answer(text string)

	// Failed is called once when the turn ends without an answer
	Failed(kind string, message string)
}

// ChatHandler is a TurnHandler that also owns an interactive session.
type ChatHandler interface {
	TurnHandler

	// Welcome displays the initial welcome message when chat starts
	Welcome(modelName string, toolCount int)

	// AwaitClientAnswer prompts for and reads user input
	AwaitClientAnswer() (string, error)

	// Goodbye displays the farewell message when chat ends
	Goodbye()

	// Error displays an error message
	Error(err error)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Thinking(int)                        {}
func (Nop) Reasoning(string)                    {}
func (Nop) CallingTool(string, string)          {}
func (Nop) ToolComplete(string, string, bool)   {}
func (Nop) Answer(string)                       {}
func (Nop) Failed(string, string)               {}
