package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/c360/meshview/errors"
	"github.com/c360/meshview/fanout"
)

// client adapts a websocket connection to the hub's Subscriber contract.
// Gorilla connections do not tolerate concurrent writers, so every frame
// goes out under writeMu.
type client struct {
	id   string
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

var _ fanout.Subscriber = (*client)(nil)

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:     uuid.NewString(),
		conn:   conn,
		closed: make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

// Send marshals the notification and writes it as a single text frame.
func (c *client) Send(n fanout.Notification) error {
	select {
	case <-c.closed:
		return errors.WrapTransient(errors.ErrSubscriberClosed, "client", "Send", "connection closed")
	default:
	}

	data, err := json.Marshal(n)
	if err != nil {
		return errors.WrapInvalid(err, "client", "Send", "marshal notification")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return errors.WrapTransient(err, "client", "Send", "set write deadline")
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.WrapTransient(err, "client", "Send", "write frame")
	}
	return nil
}

func (c *client) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close sends a close frame and tears down the connection. Safe to call
// multiple times; the hub calls it on removal and Stop calls it again.
func (c *client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	return nil
}
