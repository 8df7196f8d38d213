package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go-inventory-hold/internal/events"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"
)

const broadcastBuffer = 256

// Hub pushes availability changes to connected dashboards and storefronts.
type Hub struct {
	Clients    map[*websocket.Conn]bool
	Register   chan *websocket.Conn
	Unregister chan *websocket.Conn
	Broadcast  chan []byte
	mutex      sync.Mutex
	log        zerolog.Logger

	// done is closed when Run returns.
	done chan struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		Clients:    make(map[*websocket.Conn]bool),
		Register:   make(chan *websocket.Conn),
		Unregister: make(chan *websocket.Conn),
		Broadcast:  make(chan []byte, broadcastBuffer),
		log:        log.With().Str("component", "ws_hub").Logger(),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case conn := <-h.Register:
			h.mutex.Lock()
			h.Clients[conn] = true
			h.mutex.Unlock()
			h.log.Debug().Int("clients", h.ClientCount()).Msg("client connected")

		case conn := <-h.Unregister:
			h.mutex.Lock()
			if _, ok := h.Clients[conn]; ok {
				delete(h.Clients, conn)
				conn.Close()
			}
			h.mutex.Unlock()

		case message := <-h.Broadcast:
			h.mutex.Lock()
			for conn := range h.Clients {
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					delete(h.Clients, conn)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Join registers conn. It returns false once the hub has stopped, in which
// case the caller should close the connection.
func (h *Hub) Join(conn *websocket.Conn) bool {
	select {
	case h.Register <- conn:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters conn. After the hub has stopped it returns at once; Run
// has already closed every registered connection.
func (h *Hub) Leave(conn *websocket.Conn) {
	select {
	case h.Unregister <- conn:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.Clients)
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn := range h.Clients {
		conn.Close()
		delete(h.Clients, conn)
	}
}

// Publish queues the event for every client. When the queue is full the event
// is dropped; clients resync from GET /skus.
func (h *Hub) Publish(_ context.Context, e events.Event) {
	payload := map[string]interface{}{
		"type":    "stock_update",
		"action":  e.Type,
		"event":   e,
		"message": describe(e),
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal event")
		return
	}
	select {
	case h.Broadcast <- msg:
	default:
		h.log.Warn().Str("event_type", string(e.Type)).Msg("broadcast queue full, event dropped")
	}
}

func describe(e events.Event) string {
	switch e.Type {
	case events.HoldCreated:
		return fmt.Sprintf("%d unit(s) of %s held", e.Quantity, e.SkuID)
	case events.HoldReleased, events.HoldExpired:
		return fmt.Sprintf("%d unit(s) of %s returned to the pool", e.Quantity, e.SkuID)
	case events.HoldConverted:
		return fmt.Sprintf("%d unit(s) of %s sold", e.Quantity, e.SkuID)
	case events.HoldTransferred:
		return fmt.Sprintf("%d unit(s) of %s bound to order %s", e.Quantity, e.SkuID, e.HolderID)
	case events.CounterCorrected:
		return fmt.Sprintf("reserved counter of %s corrected", e.SkuID)
	default:
		return fmt.Sprintf("%s changed", e.SkuID)
	}
}
