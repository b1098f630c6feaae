package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kiwari-pos/floorops/internal/events"
)

// ErrHubBusy is returned by Publish when the broadcast queue is full.
var ErrHubBusy = errors.New("ws: broadcast queue full")

// Hub maintains the set of active clients and broadcasts domain events to
// the clients of the event's tenant.
type Hub struct {
	// Registered clients by tenant ID
	rooms map[uuid.UUID]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound events to broadcast
	broadcast chan events.Event

	// Closed when Run returns
	done chan struct{}

	log logrus.FieldLogger

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan events.Event, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main loop until ctx is done.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.tenantID] == nil {
				h.rooms[client.tenantID] = make(map[*Client]bool)
			}
			h.rooms[client.tenantID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case evt := <-h.broadcast:
			// Marshal event to JSON once
			message, err := json.Marshal(evt)
			if err != nil {
				h.log.WithError(err).WithField("event", evt.Type).Error("marshal ws event")
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[evt.TenantID] {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, drop it
					h.log.WithField("tenant_id", evt.TenantID).Warn("ws client too slow, disconnecting")
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// join registers client. It reports false once the hub has stopped.
func (h *Hub) join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// leave unregisters client. After the hub stops every client has already
// been dropped, so there is nothing to do.
func (h *Hub) leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// remove drops client from its room and closes its send channel. Callers
// hold h.mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.tenantID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	// Clean up empty rooms
	if len(clients) == 0 {
		delete(h.rooms, client.tenantID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.remove(client)
		}
	}
}

// Publish queues evt for the tenant's subscribers. It never blocks: when the
// queue is full the event is dropped and ErrHubBusy returned.
func (h *Hub) Publish(_ context.Context, evt events.Event) error {
	select {
	case h.broadcast <- evt:
		return nil
	default:
		return ErrHubBusy
	}
}

// Subscribers returns the number of connected clients for a tenant.
func (h *Hub) Subscribers(tenantID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[tenantID])
}
