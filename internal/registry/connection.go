package registry

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beatwave/dashsync/models"
)

const sendBuffer = 64

// Connection is one live push-channel socket. The registry is its sole
// owner: exactly one Connection exists per socket, created on accept and
// destroyed on close, error, or stale-sweep eviction.
type Connection struct {
	id     string
	userID string

	ws *websocket.Conn

	mu            sync.Mutex
	lastHeartbeat time.Time
	subscriptions map[string]struct{}
	closed        bool

	send      chan models.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(id, userID string, ws *websocket.Conn, now time.Time) *Connection {
	return &Connection{
		id:            id,
		userID:        userID,
		ws:            ws,
		lastHeartbeat: now,
		subscriptions: make(map[string]struct{}),
		send:          make(chan models.Envelope, sendBuffer),
		done:          make(chan struct{}),
	}
}

// ID returns the registry-assigned connection identifier.
func (c *Connection) ID() string { return c.id }

// UserID returns the user bound to the connection, or "" for anonymous
// sockets.
func (c *Connection) UserID() string { return c.userID }

// Subscriptions returns a sorted-free snapshot of the connection's topic
// set.
func (c *Connection) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		out = append(out, topic)
	}
	return out
}

// LastHeartbeat returns the time of the most recent heartbeat envelope.
func (c *Connection) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeat
}

func (c *Connection) touchHeartbeat(now time.Time) {
	c.mu.Lock()
	c.lastHeartbeat = now
	c.mu.Unlock()
}

func (c *Connection) subscribe(topics []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, topic := range topics {
		if topic != "" {
			c.subscriptions[topic] = struct{}{}
		}
	}
	return c.subscriptionsLocked()
}

func (c *Connection) unsubscribe(topics []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, topic := range topics {
		delete(c.subscriptions, topic)
	}
	return c.subscriptionsLocked()
}

func (c *Connection) subscriptionsLocked() []string {
	out := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		out = append(out, topic)
	}
	return out
}

// enqueue hands an envelope to the write pump without blocking. It reports
// false when the connection is closed or its outbound buffer is full; a
// slow recipient must not delay the caller.
func (c *Connection) enqueue(env models.Envelope) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	select {
	case c.send <- env:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// close tears the socket down with the given closure code. Idempotent.
func (c *Connection) close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		close(c.done)
		_ = c.ws.Close()
	})
}

// writePump serializes all outbound writes; gorilla/websocket permits only
// one concurrent writer per socket.
func (c *Connection) writePump(writeTimeout time.Duration) {
	for {
		select {
		case env := <-c.send:
			payload, err := json.Marshal(env)
			if err != nil {
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
