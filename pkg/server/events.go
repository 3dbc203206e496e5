package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/realtime-ai/wellness-call/pkg/call"
	"github.com/rs/zerolog/log"
)

const (
	// WriteTimeout bounds a single frame write to a feed client.
	WriteTimeout = 2 * time.Second

	// clientBuffer is how many frames may queue for one client before it is
	// dropped as too slow.
	clientBuffer = 32
)

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() { close(c.send) })
}

// EventHub fans call events out to websocket clients. It implements
// call.Observer.
type EventHub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*hubClient
	closed  bool
}

var _ call.Observer = (*EventHub)(nil)

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*hubClient),
	}
}

// Publish queues ev for every connected client. Clients whose queue is full
// are disconnected; Publish never blocks on a slow reader.
func (h *EventHub) Publish(ev call.Event) {
	frame, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal call event")
		return
	}

	h.mu.RLock()
	var slow []*hubClient
	for _, c := range h.clients {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("clientId", c.id).Msg("Event feed client too slow, dropping")
		h.remove(c)
	}
}

// ServeHTTP upgrades the request and streams events until the client goes
// away.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Event feed upgrade failed")
		return
	}

	c := &hubClient{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, clientBuffer),
	}
	if !h.add(c) {
		conn.Close()
		return
	}

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *EventHub) add(c *hubClient) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c.id] = c
	count := len(h.clients)
	h.mu.Unlock()

	log.Debug().Str("clientId", c.id).Int("totalClients", count).Msg("Event feed client connected")
	return true
}

func (h *EventHub) remove(c *hubClient) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	count := len(h.clients)
	h.mu.Unlock()

	c.close()
	if ok {
		log.Debug().Str("clientId", c.id).Int("totalClients", count).Msg("Event feed client disconnected")
	}
}

// readLoop discards client frames and notices disconnects.
func (h *EventHub) readLoop(c *hubClient) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("clientId", c.id).Msg("Event feed read error")
			}
			return
		}
	}
}

func (h *EventHub) writeLoop(c *hubClient) {
	defer c.conn.Close()
	for frame := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			log.Debug().Err(err).Str("clientId", c.id).Msg("Event feed write failed")
			h.remove(c)
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Count returns the number of connected clients.
func (h *EventHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *EventHub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*hubClient)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
