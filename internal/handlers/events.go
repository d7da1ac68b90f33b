package handlers

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/websocket/v2"
)

// Event types broadcast on record changes.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Event tells connected clients that a record changed so list views can
// refresh without polling.
type Event struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Hub fans record-change events out to connected websocket clients.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]bool)}
}

// Broadcast sends the event to every connected client, dropping
// connections that fail to write.
func (h *Hub) Broadcast(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("Failed to marshal event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("Dropping event subscriber: %v", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// EventsHandler upgrades clients onto the hub.
type EventsHandler struct {
	hub *Hub
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(hub *Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Handle keeps the connection subscribed until the client goes away.
// Incoming messages are ignored; the stream is one-way.
func (h *EventsHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	h.hub.register(c)
	defer h.hub.unregister(c)

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}
