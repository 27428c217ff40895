// Package gateway exposes the chart service over HTTP and WebSocket. The
// REST surface (gin) drives sessions; the Hub pushes each session's render
// payload to its connected clients whenever the session accepts a refresh.
package gateway

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"stockwatch/internal/metrics"
	"stockwatch/internal/model"
)

// Hub fans render payloads out to WebSocket clients, grouped by session.
// Late joiners get the latest payload on connect; clients that cannot keep
// up are dropped rather than allowed to stall the fan-out.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool
	latest  map[string][]byte

	mets *metrics.Metrics
}

// NewHub returns an empty hub.
func NewHub(mets *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]bool),
		latest:  make(map[string][]byte),
		mets:    mets,
	}
}

// Publish stores the payload as the session's latest and hands it to every
// connected client. Called from session loops; must not block.
func (h *Hub) Publish(sessionID string, payload model.RenderPayload) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[gateway] marshal render payload for %s: %v", sessionID, err)
		return
	}

	var slow []*Client
	h.mu.Lock()
	h.latest[sessionID] = data
	for c := range h.clients[sessionID] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		h.dropLocked(c)
	}
	h.mu.Unlock()

	for range slow {
		h.mets.ClientDropped()
		log.Printf("[gateway] dropped slow ws client on session %s", sessionID)
	}
}

// Register attaches an upgraded connection to a session and starts its
// pumps. The latest payload, if any, is queued immediately.
func (h *Hub) Register(sessionID string, conn *websocket.Conn) {
	c := &Client{
		hub:       h,
		sessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, 16),
	}

	h.mu.Lock()
	if h.clients[sessionID] == nil {
		h.clients[sessionID] = make(map[*Client]bool)
	}
	h.clients[sessionID][c] = true
	if data, ok := h.latest[sessionID]; ok {
		c.send <- data
	}
	count := len(h.clients[sessionID])
	h.mu.Unlock()

	h.mets.ClientConnected()
	log.Printf("[gateway] ws client joined session %s (%d on session)", sessionID, count)

	go c.writePump()
	go c.readPump()
}

// DropSession disconnects every client of a closed session and forgets its
// latest payload.
func (h *Hub) DropSession(sessionID string) {
	h.mu.Lock()
	for c := range h.clients[sessionID] {
		h.dropLocked(c)
	}
	delete(h.clients, sessionID)
	delete(h.latest, sessionID)
	h.mu.Unlock()
}

// remove detaches a client after its read pump exits.
func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	h.dropLocked(c)
	h.mu.Unlock()
}

// dropLocked unregisters the client and closes its send channel exactly
// once. Caller holds h.mu.
func (h *Hub) dropLocked(c *Client) {
	if set, ok := h.clients[c.sessionID]; ok {
		if _, live := set[c]; live {
			delete(set, c)
			if len(set) == 0 {
				delete(h.clients, c.sessionID)
			}
			close(c.send)
			h.mets.ClientDisconnected()
		}
	}
}

// ClientCount returns connected clients across all sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}
