package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-facecam/internal/log"
)

// Buffer sizes. Frame clients keep a short queue so a slow browser falls
// behind by a few frames at most before it is dropped.
const (
	broadcastBuffer = 64
	clientBuffer    = 8
)

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex // Guards len(clients) for ClientCount
	running atomic.Bool
	dropped atomic.Uint64

	// OnRegister runs on the hub goroutine for each new client, before
	// any broadcast reaches it. Use it to queue an initial message.
	OnRegister func(c *Client)
}

// New creates a new Hub
func New(name string) *Hub {
	return &Hub{
		name:       name,
		logger:     log.Component("hub").With("hub", name),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set until ctx ends. On exit every client's send
// queue is closed so its writer sends a close frame. Run must be called
// at most once.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer close(h.done)
	defer h.running.Store(false)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			if h.OnRegister != nil {
				h.OnRegister(client)
			}
			h.logger.Debug("client connected", "clients", count)

		case client := <-h.unregister:
			h.remove(client)
			h.logger.Debug("client disconnected", "clients", h.ClientCount())

		case message := <-h.broadcast:
			for client := range h.clients {
				if !client.Send(message) {
					h.remove(client)
					h.logger.Warn("dropped slow client")
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues a message for all clients. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastStatus encodes v and queues it as a status message.
func (h *Hub) BroadcastStatus(v interface{}) error {
	msg, err := Status(v)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// BroadcastFrame queues one encoded JPEG frame.
func (h *Hub) BroadcastFrame(jpeg []byte) {
	h.Broadcast(Frame(jpeg))
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many broadcasts were discarded on a full queue.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// IsRunning returns whether the hub loop is active
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}
