package game

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// Broadcaster fans a message out to every watcher of the table.
type Broadcaster interface {
	Broadcast(message any)
}

type Client struct {
	conn     *websocket.Conn
	playerID string
	log      *zap.Logger
	mu       sync.Mutex
}

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan any
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan any, 100),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log.Named("ws"),
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.conn.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client connected", zap.String("player", client.playerID), zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
				h.log.Debug("client disconnected", zap.String("player", client.playerID), zap.Int("total", len(h.clients)))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			jsonMessage, err := json.Marshal(message)
			if err != nil {
				h.log.Error("marshal broadcast", zap.Error(err))
				continue
			}

			h.mu.RLock()
			for client := range h.clients {
				go client.Send(jsonMessage)
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues message without blocking; it is dropped when the queue is full.
func (h *Hub) Broadcast(message any) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Warn("broadcast queue full, dropping message")
	}
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send writes message to this client. A []byte is sent as is, anything else
// as JSON.
func (c *Client) Send(message any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var data []byte
	switch v := message.(type) {
	case []byte:
		data = v
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			c.log.Error("marshal message", zap.Error(err))
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.log.Debug("write failed", zap.String("player", c.playerID), zap.Error(err))
	}
}

// RegisterClient adds conn to the feed and sends it the table as it stands.
func (h *Hub) RegisterClient(conn *websocket.Conn, playerID string, state TableState) *Client {
	client := &Client{
		conn:     conn,
		playerID: playerID,
		log:      h.log,
	}
	client.Send(WSMessage{Type: MsgTableState, Data: state})
	h.register <- client
	return client
}

func (h *Hub) UnregisterClient(conn *websocket.Conn) {
	h.mu.RLock()
	for client := range h.clients {
		if client.conn == conn {
			h.mu.RUnlock()
			h.unregister <- client
			return
		}
	}
	h.mu.RUnlock()
}
