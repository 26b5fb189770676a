package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Lifecycle event types pushed to connected dashboards. Clients reconcile
// their local bin list when one of these arrives.
const (
	EventBinCreated    = "bin_created"
	EventBinConfigured = "bin_configured"
	EventBinArchived   = "bin_archived"
	EventBinRestored   = "bin_restored"
	EventBinDeleted    = "bin_deleted"
	EventBinPurged     = "bin_purged"
	EventSweepComplete = "sweep_completed"
)

// Event is the envelope broadcast to dashboard clients.
type Event struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Hub maintains active WebSocket connections and broadcasts lifecycle
// events to them. A user may hold several connections (multiple tabs).
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound events to fan out
	broadcast chan Event

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe client map access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("✅ [WEBSOCKET] Client connected: %s (%s), total: %d", client.UserID, client.UserRole, h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("🔴 [WEBSOCKET] Client disconnected: %s, remaining: %d", client.UserID, h.ClientCount())

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("❌ Failed to marshal event: %v", err)
				continue
			}
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Client buffer full, drop the event for this client
					log.Printf("⚠️ Client buffer full, dropping event for: %s", client.UserID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastEvent fans a lifecycle event out to every connected client.
func (h *Hub) BroadcastEvent(eventType string, data interface{}) {
	h.broadcast <- Event{
		Type:      eventType,
		Timestamp: time.Now().Format(time.RFC3339),
		Data:      data,
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
