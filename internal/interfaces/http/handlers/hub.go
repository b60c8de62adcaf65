package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	httpContracts "github.com/beargallbladder/fleetapitest-sub000/internal/http"
)

// writeWait bounds one broadcast write so a stalled client cannot block
// the feed for everyone else.
const writeWait = 5 * time.Second

// upgrader accepts any origin; the feed is consumed by dashboards served
// from other hosts.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one connected live feed subscriber. The mutex serializes
// writes; gorilla connections allow at most one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(event httpContracts.LiveEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(event)
}

// Hub fans scoring events out to connected websocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// ClientCount returns the number of connected subscribers.
func (hub *Hub) ClientCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}

// Broadcast sends an event to every subscriber. Clients that fail the
// write are dropped.
func (hub *Hub) Broadcast(event httpContracts.LiveEvent) {
	hub.mu.RLock()
	subscribers := make([]*client, 0, len(hub.clients))
	for c := range hub.clients {
		subscribers = append(subscribers, c)
	}
	hub.mu.RUnlock()

	for _, c := range subscribers {
		if err := c.send(event); err != nil {
			hub.remove(c)
		}
	}
}

func (hub *Hub) add(c *client) {
	hub.mu.Lock()
	hub.clients[c] = struct{}{}
	hub.mu.Unlock()
}

// remove is idempotent; the broadcast path and the reader exit path can
// both try to drop the same client.
func (hub *Hub) remove(c *client) {
	hub.mu.Lock()
	_, present := hub.clients[c]
	delete(hub.clients, c)
	hub.mu.Unlock()
	if present {
		_ = c.conn.Close()
	}
}

// Close disconnects every subscriber during server shutdown.
func (hub *Hub) Close() {
	hub.mu.Lock()
	clients := make([]*client, 0, len(hub.clients))
	for c := range hub.clients {
		clients = append(clients, c)
	}
	hub.clients = make(map[*client]struct{})
	hub.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	}
}

// Live handles GET /live, upgrading to a websocket that streams scoring
// events as they happen.
func (h *Handlers) Live(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "live_feed_disabled",
			"Live feed is not enabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the client response.
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{conn: conn}
	h.hub.add(c)
	if h.metrics != nil {
		h.metrics.AddLiveClient()
	}
	defer func() {
		h.hub.remove(c)
		if h.metrics != nil {
			h.metrics.RemoveLiveClient()
		}
	}()

	// Greet the subscriber so clients can confirm the stream without
	// waiting for the first scored vehicle.
	_ = c.send(httpContracts.LiveEvent{
		Type:      "hello",
		Timestamp: time.Now().UTC(),
		Data:      map[string]string{"engine": h.service.BackendName()},
	})

	// Consume frames until the peer disconnects. Inbound data frames are
	// discarded; the feed is one-way.
	conn.SetReadLimit(512)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
