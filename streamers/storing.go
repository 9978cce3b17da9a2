package streamers

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType names a turn event on the wire.
type EventType string

const (
	EventThinking   EventType = "thinking"
	EventReasoning  EventType = "reasoning"
	EventToolCall   EventType = "tool_call"
	EventToolResult EventType = "tool_result"
	EventAnswer     EventType = "answer"
	EventFailed     EventType = "failed"
)

// TurnEvent is the serialisable form of one TurnHandler callback.
type TurnEvent struct {
	ID          string    `json:"id"`
	TurnID      string    `json:"turn_id,omitempty"`
	Type        EventType `json:"type"`
	Iteration   int       `json:"iteration,omitempty"`
	Tool        string    `json:"tool,omitempty"`
	Payload     string    `json:"payload,omitempty"`
	Observation string    `json:"observation,omitempty"`
	Failed      bool      `json:"failed,omitempty"`
	Text        string    `json:"text,omitempty"`
	Kind        string    `json:"kind,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// EventSink receives recorded events. It is called synchronously from the
// turn's goroutine.
type EventSink func(TurnEvent)

// StoringTurnHandler is a TurnHandler decorator that records every event,
// hands it to a sink, then delegates to an inner handler.
type StoringTurnHandler struct {
	inner  TurnHandler
	sink   EventSink
	turnID string

	mu     sync.Mutex
	events []TurnEvent
}

// NewStoringTurnHandler wraps inner (which may be nil). sink may be nil.
func NewStoringTurnHandler(turnID string, inner TurnHandler, sink EventSink) *StoringTurnHandler {
	if inner == nil {
		inner = Nop{}
	}
	return &StoringTurnHandler{inner: inner, sink: sink, turnID: turnID}
}

// Events returns a copy of everything recorded so far.
func (h *StoringTurnHandler) Events() []TurnEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]TurnEvent(nil), h.events...)
}

// Types returns the recorded event types in order.
func (h *StoringTurnHandler) Types() []EventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]EventType, len(h.events))
	for i, e := range h.events {
		out[i] = e.Type
	}
	return out
}

func (h *StoringTurnHandler) record(e TurnEvent) {
	e.ID = uuid.NewString()
	e.TurnID = h.turnID
	e.CreatedAt = time.Now()

	h.mu.Lock()
	h.events = append(h.events, e)
	h.mu.Unlock()

	if h.sink != nil {
		h.sink(e)
	}
}

func (h *StoringTurnHandler) Thinking(iteration int) {
	h.record(TurnEvent{Type: EventThinking, Iteration: iteration})
	h.inner.Thinking(iteration)
}

func (h *StoringTurnHandler) Reasoning(text string) {
	h.record(TurnEvent{Type: EventReasoning, Text: text})
	h.inner.Reasoning(text)
}

func (h *StoringTurnHandler) CallingTool(toolName string, payload string) {
	h.record(TurnEvent{Type: EventToolCall, Tool: toolName, Payload: payload})
	h.inner.CallingTool(toolName, payload)
}

func (h *StoringTurnHandler) ToolComplete(toolName string, observation string, failed bool) {
	h.record(TurnEvent{Type: EventToolResult, Tool: toolName, Observation: observation, Failed: failed})
	h.inner.ToolComplete(toolName, observation, failed)
}

func (h *StoringTurnHandler) Answer(text string) {
	h.record(TurnEvent{Type: EventAnswer, Text: text})
	h.inner.Answer(text)
}

func (h *StoringTurnHandler) Failed(kind string, message string) {
	h.record(TurnEvent{Type: EventFailed, Kind: kind, Text: message})
	h.inner.Failed(kind, message)
}
