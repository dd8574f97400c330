package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teranos/jobtrail/logger"
)

// WebSocket timeout constants following the gorilla chat example
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Clients only send control frames; anything larger is a misbehaving peer
	maxMessageSize = 4096

	sendBuffer = 16
)

// Client is one WebSocket subscriber to store changes
type Client struct {
	server    *JobServer
	conn      *websocket.Conn
	send      chan interface{}
	id        string
	closeOnce sync.Once
}

// HandleWebSocket upgrades the connection and subscribes it to store changes.
// The client first receives the current total, then one message per commit.
func (s *JobServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := s.newUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		s.logger.Debugw("WebSocket upgrade failed", logger.FieldError, err.Error())
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan interface{}, sendBuffer),
		id:     uuid.NewString()[:8],
	}
	if msg, err := s.storeChangedMessage(); err == nil {
		client.send <- msg
	}
	if !s.registerClient(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many clients"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
}

// close closes the send channel exactly once
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump discards inbound messages and detects disconnects
func (c *Client) readPump() {
	defer func() {
		c.server.unregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.server.logger.Warnw("WebSocket read error",
					"client_id", c.id,
					logger.FieldError, err.Error())
			}
			return
		}
	}
}

// writePump writes queued messages and keepalive pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
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
