package network

import "log"

// clientMessage pairs an inbound message with the client that sent it.
type clientMessage struct {
	client *Client
	msg    Message
}

// Hub keeps the set of live clients and serializes their events into the handler.
type Hub struct {
	// Only touched by the Run goroutine.
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	incoming   chan clientMessage
	quit       chan struct{}

	handler EventHandler
}

func NewHub(handler EventHandler) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan clientMessage, 256),
		quit:       make(chan struct{}),
		handler:    handler,
	}
}

// Run processes hub events until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.handler.OnConnect(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				// Closing send is what stops the client's writeLoop.
				client.shutdown()
				h.handler.OnDisconnect(client)
			}

		case cm := <-h.incoming:
			if _, ok := h.clients[cm.client]; !ok {
				continue
			}
			h.handler.OnMessage(cm.client, cm.msg)

		case <-h.quit:
			for client := range h.clients {
				client.shutdown()
			}
			log.Printf("[Hub] stopped with %d clients attached", len(h.clients))
			return
		}
	}
}

// Stop ends Run. It must be called at most once.
func (h *Hub) Stop() {
	close(h.quit)
}

// Enter registers a client and blocks until the hub has accepted it.
func (h *Hub) Enter(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		c.shutdown()
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) forward(c *Client, msg Message) bool {
	select {
	case h.incoming <- clientMessage{client: c, msg: msg}:
		return true
	case <-h.quit:
		return false
	}
}
