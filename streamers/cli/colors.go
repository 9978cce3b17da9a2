package cli

// ANSI escapes, named by what they mark in the chat transcript.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	italic = "\033[3m"

	muted     = "\033[90m"
	userInput = "\033[38;5;180m"
	heading   = "\033[38;5;208m"
	reasoning = "\033[35m"
	toolOK    = "\033[32m"
	toolError = "\033[31m"
	failure   = "\033[38;5;208m"
)

// outcomeMark returns the coloured check or cross shown after a tool call.
func outcomeMark(failed bool) string {
	if failed {
		return toolError + "✗" + reset
	}
	return toolOK + "✓" + reset
}
