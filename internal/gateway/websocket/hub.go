package websocket

import (
	"context"
	"sync"

	"chatkit/pkg/logger"
)

// ChatHandler answers a chat frame. The returned channel carries encoded
// frames for the requesting client and is closed when the answer is done.
// ctx is cancelled when the client disconnects.
type ChatHandler func(ctx context.Context, sessionID, message string) (<-chan []byte, error)

// Hub tracks connected clients and their session subscriptions.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]bool
	sessions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMessage
	done       chan struct{}

	chatHandler ChatHandler
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMessage, 256),
		done:       make(chan struct{}),
	}
}

// SetChatHandler sets the callback for chat frames.
func (h *Hub) SetChatHandler(handler ChatHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chatHandler = handler
}

func (h *Hub) handleChat(ctx context.Context, sessionID, message string) (<-chan []byte, error) {
	h.mu.RLock()
	handler := h.chatHandler
	h.mu.RUnlock()
	if handler == nil {
		return nil, nil
	}
	return handler(ctx, sessionID, message)
}

// Run processes registrations and broadcasts until ctx is done. Remaining
// clients are closed on exit.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		h.mu.Lock()
		for c := range h.clients {
			c.close()
		}
		h.clients = make(map[*Client]bool)
		h.sessions = make(map[string]map[*Client]bool)
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()
			logger.Info().Str("client_id", c.id).Msg("WebSocket client connected")

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := h.clients
			if msg.session != "" {
				targets = h.sessions[msg.session]
			}
			for c := range targets {
				c.enqueue(msg.data)
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	for session := range c.sessions {
		if subs, ok := h.sessions[session]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.sessions, session)
			}
		}
	}
	c.close()
	logger.Info().Str("client_id", c.id).Msg("WebSocket client disconnected")
}

// Register adds a client. It is a no-op once the hub has stopped.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.close()
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Subscribe adds a client to a session's subscriber list.
func (h *Hub) Subscribe(c *Client, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.sessions[session] = true
	if h.sessions[session] == nil {
		h.sessions[session] = make(map[*Client]bool)
	}
	h.sessions[session][c] = true
}

// Unsubscribe removes a client from a session's subscriber list.
func (h *Hub) Unsubscribe(c *Client, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.sessions, session)
	if subs, ok := h.sessions[session]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.sessions, session)
		}
	}
}

// Broadcast sends data to every subscriber of session.
func (h *Hub) Broadcast(session string, data []byte) {
	select {
	case h.broadcast <- broadcastMessage{session: session, data: data}:
	case <-h.done:
	}
}

// BroadcastAll sends data to every connected client.
func (h *Hub) BroadcastAll(data []byte) {
	h.Broadcast("", data)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SubscriberCount returns the number of clients subscribed to session.
func (h *Hub) SubscriberCount(session string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[session])
}
