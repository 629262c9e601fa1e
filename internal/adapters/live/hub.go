// Package live pushes leaderboard updates to browsers over websockets.
package live

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/ageguess/internal/domain/types"
	"github.com/okian/ageguess/pkg/logger"
	"github.com/okian/ageguess/pkg/metrics"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 8
)

// Message is the JSON frame sent to subscribers.
type Message struct {
	Type    string        `json:"type"` // "leaderboard"
	Entries []types.Entry `json:"entries"`
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub fans the latest leaderboard out to every connected subscriber.
// Slow subscribers are dropped rather than blocking the others.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	notify     chan struct{}
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     logger.Logger

	mu     sync.RWMutex
	latest *Message
	count  int
}

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithCheckOrigin overrides the same-origin check of the upgrader.
func WithCheckOrigin(fn func(r *http.Request) bool) Option {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

// AllowOrigins accepts upgrades whose Origin matches the scheme and host of
// one of origins, or the request host itself. Requests without an Origin
// header are accepted.
func AllowOrigins(origins ...string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			allowed[strings.ToLower(u.Scheme+"://"+u.Host)] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if strings.EqualFold(u.Host, r.Host) {
			return true
		}
		_, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}

// NewHub creates a hub. Call Run to start it.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves register, unregister and publish events until ctx is done,
// then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.setCount(len(h.clients))
			if msg := h.snapshot(); msg != nil {
				h.deliver(c, *msg)
			}
		case c := <-h.unregister:
			if h.clients[c] {
				h.drop(c)
			}
		case <-h.notify:
			if msg := h.snapshot(); msg != nil {
				for c := range h.clients {
					h.deliver(c, *msg)
				}
			}
		}
	}
}

// Publish replaces the current leaderboard and wakes the hub. Bursts of
// publishes are coalesced into one broadcast of the newest list.
func (h *Hub) Publish(entries []types.Entry) {
	msg := Message{Type: "leaderboard", Entries: append([]types.Entry(nil), entries...)}
	h.mu.Lock()
	h.latest = &msg
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Subscribers reports the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// ServeWS upgrades the request and streams leaderboard frames until the
// client disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan Message, sendBuffer)}

	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	case <-r.Context().Done():
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
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
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// deliver must only be called from Run.
func (h *Hub) deliver(c *client, msg Message) {
	select {
	case c.send <- msg:
	default:
		h.drop(c)
	}
}

// drop must only be called from Run.
func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount(len(h.clients))
}

func (h *Hub) snapshot() *Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
	metrics.UpdateLiveSubscribers(n)
}
