package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
)

// ChatHandler implements streamers.ChatHandler for terminal I/O
type ChatHandler struct {
	reader   *bufio.Reader
	out      io.Writer
	spinner  *spinner
	renderer *glamour.TermRenderer
	verbose  bool
}

// NewChatHandler creates a new CLI chat handler. When verbose is set the
// oracle's reasoning and tool observations are printed as well.
func NewChatHandler(verbose bool) *ChatHandler {
	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	return &ChatHandler{
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		spinner:  newSpinner(os.Stdout),
		renderer: renderer,
		verbose:  verbose,
	}
}

func (s *ChatHandler) Welcome(modelName string, toolCount int) {
	fmt.Fprintf(s.out, "%s%sPortfolio assistant%s (model: %s, %d tools)\n", bold, heading, reset, modelName, toolCount)
	fmt.Fprintf(s.out, "%sType 'exit' or 'quit' to end the conversation.%s\n\n", muted, reset)
}

func (s *ChatHandler) AwaitClientAnswer() (string, error) {
	fmt.Fprintf(s.out, "%s>  %s", muted, reset)
	input, err := s.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	input = strings.TrimSpace(input)
	if input != "" {
		// Replace the typed line with a coloured echo.
		fmt.Fprint(s.out, "\033[1A\033[K")
		fmt.Fprintf(s.out, "%s>  %s%s\n\n", muted, userInput, input+reset)
	}
	return input, nil
}

func (s *ChatHandler) Goodbye() {
	fmt.Fprintf(s.out, "%sGoodbye!%s\n", muted, reset)
}

func (s *ChatHandler) Error(err error) {
	s.spinner.Stop()
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
}

func (s *ChatHandler) Thinking(iteration int) {
	s.spinner.Stop()
	msg := "Thinking..."
	if iteration > 0 {
		msg = fmt.Sprintf("Thinking (step %d)...", iteration+1)
	}
	s.spinner.Start(msg)
}

func (s *ChatHandler) Reasoning(text string) {
	if !s.verbose || text == "" {
		return
	}
	s.spinner.Stop()
	fmt.Fprintf(s.out, "%s%sReasoning%s\n%s%s%s%s\n\n", bold, reasoning, reset, italic, reasoning, text, reset)
}

func (s *ChatHandler) CallingTool(toolName string, payload string) {
	s.spinner.Stop()
	s.spinner.Start(fmt.Sprintf("Calling %s%s%s...", bold, toolName, reset))
}

func (s *ChatHandler) ToolComplete(toolName string, observation string, failed bool) {
	s.spinner.Stop()
	fmt.Fprintf(s.out, "%s %s%s%s called\n", outcomeMark(failed), bold, toolName, reset)
	if s.verbose {
		fmt.Fprintf(s.out, "%s%s%s\n", muted, truncate(observation, 400), reset)
	}
	fmt.Fprintln(s.out)
}

func (s *ChatHandler) Answer(text string) {
	s.spinner.Stop()

	rendered := text
	if s.renderer != nil {
		if out, err := s.renderer.Render(text); err == nil {
			rendered = out
		}
	}

	// Glamour adds leading/trailing newlines
	rendered = strings.TrimSpace(rendered)
	fmt.Fprintf(s.out, "%s•%s%s\n\n", muted, reset, rendered)
}

func (s *ChatHandler) Failed(kind string, message string) {
	s.spinner.Stop()
	fmt.Fprintf(s.out, "%s%s%s %s\n\n", failure, kind, reset, message)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// spinner handles the loading animation
type spinner struct {
	out     io.Writer
	frames  []string
	stop    chan struct{}
	stopped chan struct{}
	mu      sync.Mutex
	running bool
}

func newSpinner(out io.Writer) *spinner {
	return &spinner{
		out:    out,
		frames: []string{"◐", "◓", "◑", "◒"},
	}
}

func (s *spinner) Start(message string) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	stop, stopped := s.stop, s.stopped
	s.mu.Unlock()

	go func() {
		defer close(stopped)
		for i := 0; ; i++ {
			select {
			case <-stop:
				fmt.Fprint(s.out, "\r\033[K")
				return
			default:
				fmt.Fprintf(s.out, "\r%s%s%s %s", muted, s.frames[i%len(s.frames)], reset, message)
				time.Sleep(80 * time.Millisecond)
			}
		}
	}()
}

func (s *spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, stopped := s.stop, s.stopped
	s.mu.Unlock()

	close(stop)
	<-stopped
}
