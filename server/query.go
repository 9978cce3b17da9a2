package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"nlcp/agent"
	"nlcp/llm"
)

// historyMessage is one prior exchange as the web client sends it.
type historyMessage struct {
	Type    string `json:"type"` // "human" or "ai"
	Content string `json:"content"`
}

type queryRequest struct {
	Message     string           `json:"message"`
	ChatHistory []historyMessage `json:"chat_history"`
}

// history converts chat_history to oracle messages. Entries of any other
// type are dropped.
func (q *queryRequest) history() []llm.Message {
	out := make([]llm.Message, 0, len(q.ChatHistory))
	for _, m := range q.ChatHistory {
		switch m.Type {
		case "human":
			out = append(out, llm.NewTextMessage(llm.RoleUser, m.Content))
		case "ai":
			out = append(out, llm.NewTextMessage(llm.RoleAssistant, m.Content))
		}
	}
	return out
}

type queryResponse struct {
	TurnID   string          `json:"turn_id"`
	State    agent.State     `json:"state"`
	Response json.RawMessage `json:"response"`
	Trace    []agent.Step    `json:"trace"`
	Error    string          `json:"error,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, errAgentNotReady)
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON format in request body.")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "No 'message' provided in the request body.")
		return
	}

	res, err := s.agent.Stream(r.Context(), req.Message, req.history(), nil)
	if err != nil {
		if errors.Is(err, agent.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "No 'message' provided in the request body.")
			return
		}
		s.logger.Error("turn failed to start", "error", err)
		writeError(w, http.StatusInternalServerError, "An internal server error occurred: "+err.Error())
		return
	}

	body := queryResponse{
		TurnID:   res.TurnID,
		State:    res.State,
		Response: res.Response,
		Trace:    res.Trace,
	}
	if res.Failure != nil {
		body.Error = res.Failure.Error()
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
