package llm

import (
	"context"
	"slices"
)

// Transcript is the message list for one turn: the caller's history followed
// by the messages appended while the turn runs. The caller's slice is copied
// on construction and never written to.
type Transcript struct {
	messages []Message
}

// NewTranscript starts a transcript from prior history and the new user input.
func NewTranscript(history []Message, userMessage string) *Transcript {
	msgs := make([]Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role == RoleSystem {
			continue
		}
		msgs = append(msgs, m)
	}
	msgs = append(msgs, NewTextMessage(RoleUser, userMessage))
	return &Transcript{messages: msgs}
}

// Add appends a message.
func (t *Transcript) Add(role Role, content string) {
	t.messages = append(t.messages, NewTextMessage(role, content))
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	return slices.Clone(t.messages)
}

func (t *Transcript) Len() int {
	return len(t.messages)
}

// Session binds a provider to a model and fixed system prompts. It keeps no
// per-turn state, so one Session serves concurrent turns.
type Session struct {
	provider      Provider
	model         string
	systemPrompts []string
	stopSequences []string
	maxTokens     int
	turnLogger    *TurnLogger
}

func NewSession(provider Provider, model string, systemPrompts ...string) *Session {
	return &Session{
		provider:      provider,
		model:         model,
		systemPrompts: systemPrompts,
	}
}

func (s *Session) SetStopSequences(sequences []string) {
	s.stopSequences = sequences
}

func (s *Session) SetMaxTokens(n int) {
	s.maxTokens = n
}

// SetTurnLogger records a snapshot of every request sent to the provider.
func (s *Session) SetTurnLogger(tl *TurnLogger) {
	s.turnLogger = tl
}

// Model returns the model name requests are sent to.
func (s *Session) Model() string {
	return s.model
}

// GetSystemPrompts returns the session's system prompts
func (s *Session) GetSystemPrompts() []string {
	return s.systemPrompts
}

func (s *Session) buildMessages(t *Transcript) []Message {
	msgs := make([]Message, 0, len(s.systemPrompts)+t.Len())
	for _, sp := range s.systemPrompts {
		msgs = append(msgs, Message{Role: RoleSystem, Content: sp})
	}
	return append(msgs, t.messages...)
}

// Send asks the provider for the next assistant message. The transcript is
// not modified.
func (s *Session) Send(ctx context.Context, t *Transcript) (*ChatResponse, error) {
	req := &ChatRequest{
		Model:         s.model,
		Messages:      s.buildMessages(t),
		MaxTokens:     s.maxTokens,
		StopSequences: s.stopSequences,
	}

	resp, err := s.provider.Chat(ctx, req)
	if err != nil {
		if s.turnLogger != nil {
			s.turnLogger.LogTurn("error: "+err.Error(), req.Messages)
		}
		return nil, err
	}

	if s.turnLogger != nil {
		s.turnLogger.LogTurn("response", append(req.Messages, NewTextMessage(RoleAssistant, resp.Content)))
	}
	return resp, nil
}
