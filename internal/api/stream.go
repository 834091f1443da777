package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/hearth/internal/events"
)

const (
	maxStreamConns = 16
	streamCatchUp  = 50
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingEvery      = 25 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and pushes every bus event as a JSON
// text message, starting with a short catch-up of recent events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.streamConns, 1)
	if current > maxStreamConns {
		atomic.AddInt32(&s.streamConns, -1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.streamConns, -1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}
	defer conn.Close()

	subID, ch := s.Sim.Bus.Subscribe()
	defer s.Sim.Bus.Unsubscribe(subID)
	slog.Info("stream client connected", "sub_id", subID, "remote", clientIP(r))

	// The reader only watches for the client going away.
	closed := make(chan struct{})
	conn.SetReadLimit(4 * 1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, e := range s.Sim.Bus.Recent(streamCatchUp) {
		if err := writeEvent(conn, e); err != nil {
			return
		}
	}

	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	for {
		select {
		case e, ok := <-ch:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := writeEvent(conn, e); err != nil {
				slog.Debug("stream write failed", "sub_id", subID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, e events.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
