package ws

import (
	"github.com/gorilla/websocket"
)

// wsConn is the slice of *websocket.Conn the broadcaster needs. Tests
// substitute an in-memory recorder.
type wsConn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type client struct {
	conn wsConn
	send chan []byte
}

func newClient(conn wsConn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}
