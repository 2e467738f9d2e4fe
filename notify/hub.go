// Package notify delivers mutual-match events: to connected websocket
// clients through a Hub, and to other processes through a watermill bus.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/matching"
	"github.com/Benwil1/latest-copy-sub000/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 16
)

// ServerEvent is the frame pushed to websocket clients.
type ServerEvent struct {
	Type string `json:"type"` // "match" | "info"
	Data any    `json:"data,omitempty"`
}

// MatchPayload is the Data of a "match" event, seen from the receiver's side.
type MatchPayload struct {
	OtherUserID string    `json:"other_user_id"`
	MatchKey    string    `json:"match_key"`
	MatchedAt   time.Time `json:"matched_at"`
}

// Hub fans match events out to every connection of the two matched users.
// Slow clients drop events instead of blocking delivery.
type Hub struct {
	subscribers map[string]map[chan ServerEvent]bool
	mu          sync.RWMutex
	upgrader    websocket.Upgrader
}

func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		subscribers: make(map[string]map[chan ServerEvent]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Subscribe registers a buffered channel for userID. The returned cleanup
// unregisters and closes it.
func (h *Hub) Subscribe(userID string) (<-chan ServerEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ServerEvent, sendBuffer)
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[chan ServerEvent]bool)
	}
	h.subscribers[userID][ch] = true

	var once sync.Once
	return ch, func() { once.Do(func() { h.unsubscribe(userID, ch) }) }
}

func (h *Hub) unsubscribe(userID string, ch chan ServerEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[userID]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.subscribers, userID)
		}
	}
	close(ch)
}

// Connected reports how many channels userID has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

func (h *Hub) sendToUser(userID string, evt ServerEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subscribers[userID] {
		select {
		case ch <- evt:
		default:
			// Drop message if user's buffer is full
		}
	}
}

// OnMutualMatch implements matching.Notifier.
func (h *Hub) OnMutualMatch(_ context.Context, ev matching.MatchEvent) error {
	h.sendToUser(ev.UserA, ServerEvent{Type: "match", Data: MatchPayload{OtherUserID: ev.UserB, MatchKey: ev.MatchKey, MatchedAt: ev.MatchedAt}})
	h.sendToUser(ev.UserB, ServerEvent{Type: "match", Data: MatchPayload{OtherUserID: ev.UserA, MatchKey: ev.MatchKey, MatchedAt: ev.MatchedAt}})
	return nil
}

// ServeWS upgrades the request and streams userID's match events until the
// client goes away. The caller authenticates.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("user_id", userID).Msg("websocket upgrade failed")
		return
	}

	events, cleanup := h.Subscribe(userID)
	metrics.WebsocketClients.Inc()
	defer metrics.WebsocketClients.Dec()

	done := make(chan struct{})
	go func() {
		defer close(done)
		writer(conn, events)
	}()

	h.sendToUser(userID, ServerEvent{Type: "info", Data: "connected"})
	reader(conn)

	cleanup()
	<-done
	_ = conn.Close()
}

// reader drains client frames so pongs and close frames are processed.
func reader(conn *websocket.Conn) {
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writer(conn *websocket.Conn, events <-chan ServerEvent) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case evt, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			// ping to keep the connection alive
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
