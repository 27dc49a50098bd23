package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clawdbot/sheep/pkg/memstore"
)

const wsWriteTimeout = 10 * time.Second

// changeFeed broadcasts memory changes to websocket clients.
type changeFeed struct {
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func newChangeFeed(log *slog.Logger) *changeFeed {
	return &changeFeed{
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: map[chan []byte]struct{}{},
	}
}

// changeEvent is the wire form of one feed entry.
type changeEvent struct {
	Type string         `json:"type"`
	Fact *memstore.Fact `json:"fact,omitempty"`
}

// publishFact is registered as a store fact-write hook.
func (f *changeFeed) publishFact(e memstore.FactEvent) {
	msg, err := json.Marshal(changeEvent{Type: string(e.Type), Fact: e.Fact})
	if err != nil {
		return
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.clients {
		select {
		case ch <- msg:
		default:
			// Drop for slow clients; the feed is best-effort.
		}
	}
}

func (f *changeFeed) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already replied
	}
	defer conn.Close()

	ch := make(chan []byte, 100)
	f.mu.Lock()
	f.clients[ch] = struct{}{}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		delete(f.clients, ch)
		f.mu.Unlock()
	}()

	// Reader only detects close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	hello, _ := json.Marshal(changeEvent{Type: "connected"})
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, hello); err != nil {
		return
	}

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case msg := <-ch:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
