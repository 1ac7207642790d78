package network

// Peer is the server-side view of one connection, as seen by the game logic.
type Peer interface {
	// Deliver queues msg for writing without blocking. It reports false when
	// the peer is gone or too slow, in which case the peer is shut down.
	Deliver(msg Message) bool
	// Close shuts the connection down from the server side.
	Close()
	// Addr identifies the remote end for logs.
	Addr() string
}

// EventHandler connects the network layer with the game logic.
// All three callbacks run on the hub goroutine, one at a time.
type EventHandler interface {
	OnConnect(p Peer)
	OnDisconnect(p Peer)
	OnMessage(p Peer, msg Message)
}
