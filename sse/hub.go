package sse

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/kbukum/intentflow/logger"
)

// DefaultClientBuffer is the number of frames queued per client before
// frames are dropped.
const DefaultClientBuffer = 256

// Client is a connected SSE stream.
type Client struct {
	id       string
	metadata map[string]string
	events   chan Frame
	dropped  int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMetadata adds a metadata key-value pair to the client.
func WithMetadata(key, value string) ClientOption {
	return func(c *Client) { c.metadata[key] = value }
}

// WithUserID records the authenticated caller.
func WithUserID(userID string) ClientOption {
	return WithMetadata("user_id", userID)
}

// NewClient creates a client with the given id.
func NewClient(id string, opts ...ClientOption) *Client {
	c := &Client{
		id:       id,
		metadata: make(map[string]string),
		events:   make(chan Frame, DefaultClientBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ID() string                  { return c.id }
func (c *Client) Metadata() map[string]string { return c.metadata }
func (c *Client) UserID() string              { return c.metadata["user_id"] }

// Events delivers frames until the client is unregistered.
func (c *Client) Events() <-chan Frame { return c.events }

// Send queues f without blocking. It reports false when the client is too
// slow and the frame was dropped.
func (c *Client) Send(f Frame) bool {
	select {
	case c.events <- f:
		return true
	default:
		c.dropped++
		return false
	}
}

type broadcast struct {
	pattern string
	frame   Frame
}

// Hub routes frames to clients. All client map mutations happen on the
// Run goroutine.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcast
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *logger.Logger
}

var _ Broadcaster = (*Hub)(nil)

// NewHub creates a hub. Call Run before registering clients.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcast, 256),
		done:       make(chan struct{}),
		log:        log.WithComponent("sse"),
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.id]; ok {
				close(old.events)
			}
			h.clients[client.id] = client
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client registered", logger.Fields("client_id", client.id, "total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[client.id]; ok && cur == client {
				delete(h.clients, client.id)
				close(client.events)
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg.pattern, msg.frame)
		}
	}
}

// Stop closes every client and makes Run return. It is idempotent.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, client := range h.clients {
		close(client.events)
		delete(h.clients, id)
	}
}

// Register adds client. It returns false if the hub is stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes client and closes its event channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues f for every client whose id matches the glob pattern.
func (h *Hub) Broadcast(pattern string, f Frame) {
	select {
	case h.broadcast <- broadcast{pattern: pattern, frame: f}:
	case <-h.done:
	}
}

func (h *Hub) deliver(pattern string, f Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, client := range h.clients {
		matched, err := filepath.Match(pattern, id)
		if err != nil {
			h.log.Error("Bad broadcast pattern", logger.MergeWithError(logger.Fields("pattern", pattern), err))
			return
		}
		if matched && !client.Send(f) {
			h.log.Warn("Client buffer full, dropping frame", logger.Fields("client_id", id, "event", f.Event))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ExecutionCount returns the number of distinct executions with at least
// one connected client. Ids outside the "execution:<id>:<conn>" scheme
// are not counted.
func (h *Hub) ExecutionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	for id := range h.clients {
		rest, ok := strings.CutPrefix(id, "execution:")
		if !ok {
			continue
		}
		if i := strings.LastIndexByte(rest, ':'); i > 0 {
			seen[rest[:i]] = struct{}{}
		}
	}
	return len(seen)
}
