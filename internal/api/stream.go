package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/contagion/internal/agents"
	"github.com/talgya/contagion/internal/engine"
)

const (
	heartbeatPeriod = 15 * time.Second

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamCounter caps concurrent SSE and websocket clients.
type streamCounter struct {
	n atomic.Int32
}

func (c *streamCounter) acquire() bool {
	if c.n.Add(1) > maxStreamConns {
		c.n.Add(-1)
		return false
	}
	return true
}

func (c *streamCounter) release() { c.n.Add(-1) }

// Frame is one websocket message: the tick's stats and the render snapshot.
type Frame struct {
	Stats  engine.Stats  `json:"stats"`
	Agents []agents.View `json:"agents"`
}

// handleStream pushes per-tick Stats as server-sent events until the run ends
// or the client leaves.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sim := s.current(w)
	if sim == nil {
		return
	}
	if !s.streams.acquire() {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streams.release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	subID, ch := sim.Subscribe()
	defer sim.Unsubscribe(subID)

	// Current state as catch-up.
	writeSSEEvent(w, "stats", sim.Stats())
	flusher.Flush()

	slog.Info("SSE client connected", "sub_id", subID, "run", sim.RunID())

	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case st, ok := <-ch:
			if !ok {
				writeSSEEvent(w, "end", sim.Stats())
				flusher.Flush()
				return
			}
			writeSSEEvent(w, "stats", st)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			slog.Info("SSE client disconnected", "sub_id", subID)
			return
		}
	}
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, event string, st engine.Stats) {
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// handleWebsocket pushes a Frame per tick over a websocket with ping keepalive.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	sim := s.current(w)
	if sim == nil {
		return
	}
	if !s.streams.acquire() {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.streams.release()
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	subID, ch := sim.Subscribe()
	closed := make(chan struct{})
	go readPump(conn, closed)

	defer func() {
		sim.Unsubscribe(subID)
		conn.Close()
		s.streams.release()
		slog.Info("websocket client disconnected", "sub_id", subID)
	}()
	slog.Info("websocket client connected", "sub_id", subID, "run", sim.RunID())

	first := Frame{Stats: sim.Stats(), Agents: sim.Snapshot()}
	if err := writeFrame(conn, first); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case st, ok := <-ch:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run ended"))
				return
			}
			if err := writeFrame(conn, Frame{Stats: st, Agents: sim.Snapshot()}); err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("websocket ping failed", "error", err)
				return
			}
		case <-closed:
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(f)
}

// readPump drains client messages so control frames are processed and
// closes done when the client goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "error", err)
			}
			return
		}
	}
}
