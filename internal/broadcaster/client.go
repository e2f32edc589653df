package broadcaster

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	maxMessageBytes = 4096
)

// client is one connected WebSocket subscriber. It never reads application
// messages from the browser beyond pongs/close frames; status_change is a
// server-to-client push channel only.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// writePump owns conn.WriteMessage and the heartbeat ticker; gorilla's
// websocket.Conn forbids concurrent writers, so all writes funnel through
// this single goroutine per connection.
func (c *client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		c.hub.remove(c)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains inbound frames so pong/close control messages are
// processed; it enforces the heartbeat timeout as a read deadline and exits
// (tearing down the connection) if the client goes silent.
func (c *client) readPump() {
	defer c.hub.remove(c)

	c.conn.SetReadLimit(maxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.HeartbeatTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.HeartbeatTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
