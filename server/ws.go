package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"

	"nlcp/agent"
	"nlcp/streamers"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Frame types sent in addition to the streamed turn events.
const (
	FrameResult streamers.EventType = "result"
	FrameError  streamers.EventType = "error"
)

// frame is one websocket message to the client: a turn event, the turn's
// result, or an error.
type frame struct {
	streamers.TurnEvent
	State    agent.State     `json:"state,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// wsConn serialises writes to one websocket.
type wsConn struct {
	ws     *websocket.Conn
	logger hclog.Logger
	mu     sync.Mutex
}

func (c *wsConn) write(f frame) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteJSON(f); err != nil {
		c.logger.Debug("websocket write failed", "error", err)
	}
}

func (c *wsConn) writeError(turnID, msg string) {
	c.write(frame{TurnEvent: streamers.TurnEvent{ID: uuid.NewString(), TurnID: turnID, Type: FrameError}, Error: msg})
}

func (c *wsConn) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// handleWS runs one turn per text frame and streams its events back. A
// connection runs at most one turn at a time; closing it cancels the turn.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.agent == nil {
		writeError(w, http.StatusServiceUnavailable, errAgentNotReady)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &wsConn{ws: ws, logger: s.logger}
	defer ws.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.pingLoop(ctx)

	var busy atomic.Bool
	turns := make(chan queryRequest, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for req := range turns {
			s.streamTurn(ctx, c, req, func() { busy.Store(false) })
		}
	}()

	s.readLoop(c, turns, &busy)
	cancel()
	close(turns)
	<-done
}

func (s *Server) readLoop(c *wsConn, turns chan<- queryRequest, busy *atomic.Bool) {
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(pongWait))

		var req queryRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.writeError("", "Invalid JSON format in message.")
			continue
		}
		if strings.TrimSpace(req.Message) == "" {
			c.writeError("", "No 'message' provided.")
			continue
		}

		if !busy.CompareAndSwap(false, true) {
			c.writeError("", "A turn is already in progress on this connection.")
			continue
		}
		turns <- req
	}
}

// streamTurn runs req and calls release before the final frame, so a client
// may send its next message as soon as it sees the result.
func (s *Server) streamTurn(ctx context.Context, c *wsConn, req queryRequest, release func()) {
	turnID := uuid.NewString()
	handler := streamers.NewStoringTurnHandler(turnID, nil, func(e streamers.TurnEvent) {
		c.write(frame{TurnEvent: e})
	})

	res, err := s.agent.Stream(agent.WithTurnID(ctx, turnID), req.Message, req.history(), handler)
	release()
	if err != nil {
		c.writeError(turnID, err.Error())
		return
	}

	result := frame{
		TurnEvent: streamers.TurnEvent{ID: uuid.NewString(), TurnID: res.TurnID, Type: FrameResult, Text: res.FinalText},
		State:     res.State,
		Response:  res.Response,
	}
	if res.Failure != nil {
		result.Kind = string(res.Failure.Kind)
		result.Error = res.Failure.Message
	}
	c.write(result)
}
