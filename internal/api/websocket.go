package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/SentientNarrative/internal/events"
)

const (
	// Number of recent events replayed on connection
	recentEventsCount = 50

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be less than pongWait
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamFilter keeps events whose name starts with one of the prefixes.
// No prefixes keeps everything.
type streamFilter []string

func parseStreamFilter(r *http.Request) streamFilter {
	var f streamFilter
	for _, raw := range r.URL.Query()["prefix"] {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				f = append(f, p)
			}
		}
	}
	return f
}

func (f streamFilter) match(name string) bool {
	if len(f) == 0 {
		return true
	}
	for _, p := range f {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// wsEventsHandler streams events to a WebSocket client. Remote presenters
// connect with ?prefix=presenter.,choice. to follow the current beat.
func wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	filter := parseStreamFilter(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}

	sub := events.Subscribe()
	closeConn := func() {
		events.Unsubscribe(sub)
		conn.Close()
	}

	send := func(e events.Event) bool {
		if !filter.match(e.Name) {
			return true
		}
		data, err := json.Marshal(e)
		if err != nil {
			return true
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("ws write failed", "error", err)
			return false
		}
		return true
	}

	for _, e := range events.RecentEvents(recentEventsCount) {
		if !send(e) {
			closeConn()
			return
		}
	}

	// Reader handles pongs and close frames.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			closeConn()
			return

		case e, ok := <-sub:
			if !ok {
				// Broadcaster shut down.
				conn.Close()
				return
			}
			if !send(e) {
				closeConn()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				closeConn()
				return
			}
		}
	}
}
