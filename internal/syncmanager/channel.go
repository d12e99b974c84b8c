package syncmanager

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beatwave/dashsync/models"
)

// PushChannel is one open bidirectional envelope stream. The manager
// owns the channel: it reads from a single goroutine and serializes
// writes itself.
type PushChannel interface {
	ReadEnvelope() (models.Envelope, error)
	WriteEnvelope(env models.Envelope) error
	Close() error
}

// PushDialer opens push channels. The websocket implementation is the
// production one; tests substitute in-memory channels.
type PushDialer interface {
	Dial(ctx context.Context, url string) (PushChannel, error)
}

type websocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer returns a PushDialer backed by gorilla/websocket.
// The handshake deadline comes from the passed context.
func NewWebsocketDialer() PushDialer {
	return &websocketDialer{dialer: &websocket.Dialer{}}
}

func (d *websocketDialer) Dial(ctx context.Context, url string) (PushChannel, error) {
	ws, _, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &websocketChannel{ws: ws}, nil
}

type websocketChannel struct {
	ws *websocket.Conn
}

func (c *websocketChannel) ReadEnvelope() (models.Envelope, error) {
	var env models.Envelope
	if err := c.ws.ReadJSON(&env); err != nil {
		return models.Envelope{}, err
	}
	return env, nil
}

func (c *websocketChannel) WriteEnvelope(env models.Envelope) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteJSON(env)
}

func (c *websocketChannel) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}
