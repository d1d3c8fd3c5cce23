package push

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the transport surface the registry and dispatcher see. Keeping it
// small lets tests substitute in-memory fakes for real sockets.
type Conn interface {
	ID() string
	WriteJSON(v interface{}) error
	Close() error
}

// wsConn wraps a gorilla connection with a single writer goroutine. Gorilla
// connections allow only one concurrent writer; every send goes through the
// buffered channel.
type wsConn struct {
	id           string
	ws           *websocket.Conn
	send         chan []byte
	writeTimeout time.Duration
	pingInterval time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// newWSConn starts the writer pump for an upgraded connection.
func newWSConn(id string, ws *websocket.Conn, writeTimeout, pingInterval time.Duration, bufferSize int) *wsConn {
	if bufferSize <= 0 {
		bufferSize = 16
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	c := &wsConn{
		id:           id,
		ws:           ws,
		send:         make(chan []byte, bufferSize),
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		done:         make(chan struct{}),
	}
	go c.writePump()
	return c
}

// ID returns the connection's stable identifier.
func (c *wsConn) ID() string { return c.id }

// WriteJSON queues a JSON message for the writer pump. A full buffer counts
// as a send failure rather than blocking the dispatcher.
func (c *wsConn) WriteJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close tears the connection down and stops the writer pump.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}
