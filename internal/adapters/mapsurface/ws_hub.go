package mapsurface

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	resyncInterval = 250 * time.Millisecond
	maxMessageSize = 4096
	sendBuffer     = 1024
	broadcastQueue = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// stale marks a client that missed messages. It gets a fresh snapshot
	// once its buffer has drained. Owned by Run.
	stale bool
}

// Hub keeps the connected map clients and fans messages out to them.
// Register, unregister and broadcast all go through Run.
//
// A client that falls behind is not disconnected: it skips messages until
// it can take a snapshot of the current markers, which clients apply over
// any operations still in flight.
type Hub struct {
	clients    map[string]*client
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	lost       chan struct{}
	done       chan struct{}

	// welcome builds the first message a new client receives.
	welcome func() []byte
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[string]*client),
		register:   make(chan *client, 16),
		unregister: make(chan *client, 16),
		broadcast:  make(chan []byte, broadcastQueue),
		lost:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		log:        log.Named("ws_hub"),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(resyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.log.Info("websocket hub stopped")
			return

		case c := <-h.register:
			h.clients[c.id] = c
			if h.welcome != nil {
				c.send <- h.welcome()
			}
			h.log.Debug("client registered", zap.String("client_id", c.id), zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			h.log.Debug("client unregistered", zap.String("client_id", c.id))

		case msg := <-h.broadcast:
			for _, c := range h.clients {
				h.deliver(c, msg)
			}

		case <-h.lost:
			h.log.Warn("broadcast queue overflowed, resyncing clients", zap.Int("clients", len(h.clients)))
			for _, c := range h.clients {
				h.markStale(c)
			}

		case <-ticker.C:
			for _, c := range h.clients {
				if c.stale {
					h.resync(c)
				}
			}
		}
	}
}

func (h *Hub) deliver(c *client, msg []byte) {
	if c.stale {
		// the snapshot will include msg
		h.resync(c)
		return
	}
	select {
	case c.send <- msg:
	default:
		h.markStale(c)
	}
}

// markStale flags c for a snapshot. Without a snapshot source the client is
// dropped instead.
func (h *Hub) markStale(c *client) {
	if h.welcome == nil {
		close(c.send)
		delete(h.clients, c.id)
		h.log.Warn("client dropped, send buffer full", zap.String("client_id", c.id))
		return
	}
	if !c.stale {
		h.log.Warn("client fell behind, will resync", zap.String("client_id", c.id))
	}
	c.stale = true
}

func (h *Hub) resync(c *client) {
	if len(c.send) > cap(c.send)/2 {
		return
	}
	select {
	case c.send <- h.welcome():
		c.stale = false
		h.log.Debug("client resynced", zap.String("client_id", c.id))
	default:
	}
}

// Broadcast queues msg for every client. It never blocks; when the queue is
// full the message is dropped and every client is resynced.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		select {
		case h.lost <- struct{}{}:
		default:
		}
	}
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  h,
	}

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readPump only drains control frames; the map feed is one-way.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.hub.done:
			return
		}
	}
}
