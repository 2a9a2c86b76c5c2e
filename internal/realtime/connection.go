package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zulandar/switchboard/internal/models"
)

const (
	writeWait      = 10 * time.Second
	closeWait      = time.Second
	pingPeriod     = 30 * time.Second
	closeGoingAway = websocket.CloseGoingAway
	sendBuffer     = 64
)

// ErrClosed is returned by Send on a closed subscriber.
var ErrClosed = errors.New("subscriber closed")

// ErrSlowConsumer is returned by Send when the outbound buffer is full. The
// subscriber is closed.
var ErrSlowConsumer = errors.New("subscriber buffer exceeded")

// Connection is a websocket subscriber. Outbound writes go through a
// buffered channel drained by a single write loop.
type Connection struct {
	ID     string
	UserID string
	Role   models.Role

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}
}

// NewConnection wraps ws for the given user.
func NewConnection(userID string, role models.Role, ws *websocket.Conn) *Connection {
	return &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		close:  make(chan struct{}),
	}
}

// SubscriberID returns the connection ID.
func (c *Connection) SubscriberID() string { return c.ID }

// Start launches the write loop. Call it once.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues payload without blocking. A full buffer marks the
// connection closed at once and tears the socket down in the background.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.close:
		return ErrClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		if c.markClosed() {
			go c.teardown(websocket.ClosePolicyViolation, "send buffer full")
		}
		return ErrSlowConsumer
	}
}

// Close sends a close frame and tears the socket down. Safe to call more
// than once.
func (c *Connection) Close(code int, reason string) {
	if c.markClosed() {
		c.teardown(code, reason)
	}
}

// markClosed closes c.close and reports whether this call did so.
func (c *Connection) markClosed() bool {
	first := false
	c.once.Do(func() {
		close(c.close)
		first = true
	})
	return first
}

func (c *Connection) teardown(code int, reason string) {
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(closeWait))
	_ = c.ws.Close()
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) write(kind int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(kind, payload)
}
