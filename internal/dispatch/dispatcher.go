// Package dispatch turns network events into registry and engine calls.
package dispatch

import (
	"errors"
	"log"
	"sync"
	"time"

	"orderup/internal/engine"
	"orderup/internal/events"
	"orderup/internal/lobby"
	"orderup/internal/message"
	"orderup/internal/network"
	"orderup/internal/store"
)

// CommandHandlerFunc handles one message type. playerID is empty for guests.
type CommandHandlerFunc func(d *Dispatcher, p network.Peer, playerID string, msg network.Message) error

// Options carries the optional collaborators of a Dispatcher.
type Options struct {
	Store           store.Store
	Events          events.Publisher
	LeaderboardSize int
}

// Dispatcher implements network.EventHandler.
type Dispatcher struct {
	conns    *Connections
	rooms    *lobby.Registry
	sessions *engine.Manager

	store           store.Store
	events          events.Publisher
	leaderboardSize int

	mu sync.Mutex
	// identity bound to each connected peer, "" before login
	peers map[network.Peer]string

	guestRouter  map[string]CommandHandlerFunc
	playerRouter map[string]CommandHandlerFunc

	queries sync.WaitGroup
}

func New(conns *Connections, rooms *lobby.Registry, sessions *engine.Manager, opts Options) *Dispatcher {
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.LeaderboardSize <= 0 {
		opts.LeaderboardSize = 10
	}
	d := &Dispatcher{
		conns:           conns,
		rooms:           rooms,
		sessions:        sessions,
		store:           opts.Store,
		events:          opts.Events,
		leaderboardSize: opts.LeaderboardSize,
		peers:           make(map[network.Peer]string),
		guestRouter:     make(map[string]CommandHandlerFunc),
		playerRouter:    make(map[string]CommandHandlerFunc),
	}
	d.registerGuestHandlers()
	d.registerPlayerHandlers()
	return d
}

func (d *Dispatcher) OnConnect(p network.Peer) {
	d.mu.Lock()
	d.peers[p] = ""
	n := len(d.peers)
	d.mu.Unlock()
	log.Printf("[Dispatcher] connection from %s (%d open)", p.Addr(), n)
}

// OnDisconnect drops the binding and makes the identity leave every room it
// was in. Running sessions in those rooms end by forfeit.
func (d *Dispatcher) OnDisconnect(p network.Peer) {
	d.mu.Lock()
	playerID, ok := d.peers[p]
	delete(d.peers, p)
	d.mu.Unlock()

	if !ok || playerID == "" {
		return
	}
	if !d.conns.Unbind(playerID, p) {
		return
	}

	rooms := d.rooms.RoomsOf(playerID)
	for _, roomID := range rooms {
		if err := d.rooms.Leave(roomID, playerID); err != nil {
			log.Printf("WARN: [Dispatcher] %s leaving %s on disconnect: %v", playerID, roomID, err)
		}
	}
	log.Printf("[Dispatcher] %s disconnected, left %d rooms", playerID, len(rooms))
	d.publishPresence(playerID, events.Offline, rooms)
}

func (d *Dispatcher) OnMessage(p network.Peer, msg network.Message) {
	d.mu.Lock()
	playerID, ok := d.peers[p]
	d.mu.Unlock()
	if !ok {
		return
	}

	router := d.playerRouter
	if playerID == "" {
		router = d.guestRouter
	}
	handler, found := router[msg.Type]
	if !found {
		if _, known := d.playerRouter[msg.Type]; known && playerID == "" {
			d.fail(p, protocolErrorf(msg.Type, "login first"))
			return
		}
		d.fail(p, protocolErrorf(msg.Type, "unknown or invalid message type"))
		return
	}
	if err := handler(d, p, playerID, msg); err != nil {
		d.fail(p, err)
	}
}

// fail answers a request that could not be handled.
func (d *Dispatcher) fail(p network.Peer, err error) {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		log.Printf("WARN: [Dispatcher] %s: %v", p.Addr(), err)
	} else {
		log.Printf("ERROR: [Dispatcher] %s: %v", p.Addr(), err)
	}
	p.Deliver(message.Error(err.Error()))
}

// Wait blocks until in-flight leaderboard queries have answered.
func (d *Dispatcher) Wait() {
	d.queries.Wait()
}

func (d *Dispatcher) publishPresence(playerID, status string, rooms []string) {
	ev := events.PresenceEvent{
		PlayerID: playerID,
		Status:   status,
		Rooms:    rooms,
		At:       time.Now().UTC(),
	}
	if err := d.events.PublishPresence(ev); err != nil {
		log.Printf("WARN: [Dispatcher] publishing presence of %s: %v", playerID, err)
	}
}
