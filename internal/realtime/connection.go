package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 20
	sendBuffer     = 256
)

var errConnectionClosed = errors.New("connection closed")

type frame struct {
	messageType int
	data        []byte
}

// Connection wraps a websocket and serializes writes through a buffered channel.
// Reads happen on the caller's goroutine via Read.
type Connection struct {
	ws    *websocket.Conn
	send  chan frame
	once  sync.Once
	close chan struct{}
}

func newConnection(ws *websocket.Conn) *Connection {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	return &Connection{
		ws:    ws,
		send:  make(chan frame, sendBuffer),
		close: make(chan struct{}),
	}
}

// Start launches the write loop. It must be called exactly once.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Send enqueues a frame. A full buffer closes the connection rather than blocking
// the peer's read loop.
func (c *Connection) Send(messageType int, data []byte) error {
	select {
	case <-c.close:
		return errConnectionClosed
	default:
	}

	select {
	case <-c.close:
		return errConnectionClosed
	case c.send <- frame{messageType: messageType, data: data}:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

// Read returns the next data frame.
func (c *Connection) Read() (int, []byte, error) {
	messageType, data, err := c.ws.ReadMessage()
	if err == nil {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	}
	return messageType, data, err
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.close
}

// Close sends a close frame and tears the socket down. Safe to call repeatedly.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case f := <-c.send:
			if err := c.write(f.messageType, f.data); err != nil {
				c.Close(websocket.CloseGoingAway, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseGoingAway, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}
