package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/iamnithishraja/klinic-sub000/pkg/logger"
)

// writeWait bounds a single frame write; a peer that stops reading fails
// the write instead of stalling the relay.
const writeWait = 10 * time.Second

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v any) error
	Close() error
}

// Client is one websocket tracking a single order.
type Client struct {
	conn    Conn
	writeMu sync.Mutex
	now     func() time.Time
}

// NewClient wraps conn for concurrent writes.
func NewClient(conn Conn) *Client {
	return &Client{conn: conn, now: time.Now}
}

// Send writes one message to the socket.
func (c *Client) Send(message any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(c.now().Add(writeWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	return c.conn.WriteJSON(message)
}

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
}

// Hub keeps the websocket clients of this instance keyed by order id.
type Hub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[*Client]struct{}
	logg *logger.Logger
}

// NewHub creates an empty hub.
func NewHub(logg *logger.Logger) *Hub {
	return &Hub{
		subs: make(map[uuid.UUID]map[*Client]struct{}),
		logg: logg,
	}
}

// Subscribe registers client for orderID and returns its unsubscribe func.
func (h *Hub) Subscribe(orderID uuid.UUID, client *Client) func() {
	h.mu.Lock()
	if h.subs[orderID] == nil {
		h.subs[orderID] = make(map[*Client]struct{})
	}
	h.subs[orderID][client] = struct{}{}
	h.mu.Unlock()

	return func() { h.remove(orderID, client) }
}

// Subscribers reports how many clients track orderID.
func (h *Hub) Subscribers(orderID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[orderID])
}

func (h *Hub) remove(orderID uuid.UUID, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clients := h.subs[orderID]
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.subs, orderID)
	}
}

// Broadcast sends msg to every client tracking its order. Clients that fail a
// write are closed and dropped.
func (h *Hub) Broadcast(msg StatusMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.subs[msg.OrderID]))
	for c := range h.subs[msg.OrderID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.Send(msg); err != nil {
			_ = c.conn.Close()
			h.remove(msg.OrderID, c)
		}
	}
}

// Dispatch decodes one published payload and broadcasts it.
func (h *Hub) Dispatch(payload string) error {
	var msg StatusMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return fmt.Errorf("decode status message: %w", err)
	}
	if msg.OrderID == uuid.Nil {
		return errors.New("status message missing order id")
	}
	h.Broadcast(msg)
	return nil
}

// Run relays the Redis channel into the hub until ctx ends.
func (h *Hub) Run(ctx context.Context, sub subscriber, channel string) error {
	ps, err := sub.Subscribe(ctx, channel)
	if err != nil {
		return err
	}
	defer func() { _ = ps.Close() }()

	h.logg.Info(h.logg.WithField(ctx, "channel", channel), "order tracking relay started")
	messages := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-messages:
			if !ok {
				return errors.New("tracking subscription closed")
			}
			if err := h.Dispatch(m.Payload); err != nil {
				h.logg.Warn(ctx, err.Error())
			}
		}
	}
}
