package network

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Outbound queue per client. A snapshot every tick fills this quickly if
	// the client stops reading.
	sendBuffer = 256
)

// Client is one connected player as seen by the server.
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	// Buffered outbound queue drained by writeLoop.
	send chan Message

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		conn: conn,
		hub:  hub,
		send: make(chan Message, sendBuffer),
	}
}

// Addr returns the remote address of the connection.
func (c *Client) Addr() string {
	if c.conn == nil {
		return "detached"
	}
	return c.conn.RemoteAddr().String()
}

// Deliver queues msg without blocking. A full queue means the client cannot
// keep up; it is shut down and its disconnect runs through the hub.
func (c *Client) Deliver(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		log.Printf("WARN: send buffer full for client %s, dropping connection", c.Addr())
		c.closed = true
		close(c.send)
		return false
	}
}

// Close shuts the client down from the server side.
func (c *Client) Close() {
	c.shutdown()
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: unexpected close from client %s: %v", c.Addr(), err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			// Answered and skipped; the connection stays up.
			log.Printf("WARN: malformed frame from client %s: %v", c.Addr(), err)
			c.Deliver(NewMessage(TypeError, map[string]string{"reason": "malformed message"}))
			continue
		}
		if !c.hub.forward(c, msg) {
			return
		}
	}
}

// writeLoop pumps messages from the send queue to the websocket.
func (c *Client) writeLoop() {
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
				// The hub (or Deliver) closed the queue.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("WARN: write to client %s failed: %v", c.Addr(), err)
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
