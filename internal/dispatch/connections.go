package dispatch

import (
	"sort"
	"sync"

	"orderup/internal/metrics"
	"orderup/internal/network"
)

// Connections maps logged-in identities to their live peer. It is the
// outbound side used by the registry and the session engine, from any
// goroutine.
type Connections struct {
	metrics *metrics.Metrics

	mu    sync.RWMutex
	peers map[string]network.Peer
}

func NewConnections(m *metrics.Metrics) *Connections {
	return &Connections{
		metrics: m,
		peers:   make(map[string]network.Peer),
	}
}

// Bind attaches playerID to p and returns the peer it replaced, if any.
func (c *Connections) Bind(playerID string, p network.Peer) network.Peer {
	c.mu.Lock()
	old := c.peers[playerID]
	c.peers[playerID] = p
	n := len(c.peers)
	c.mu.Unlock()

	c.metrics.SetPlayersOnline(n)
	if old == p {
		return nil
	}
	return old
}

// Unbind removes playerID only while it is still bound to p. A connection
// that was replaced by a newer login must not tear down the new binding.
func (c *Connections) Unbind(playerID string, p network.Peer) bool {
	c.mu.Lock()
	cur, ok := c.peers[playerID]
	if !ok || cur != p {
		c.mu.Unlock()
		return false
	}
	delete(c.peers, playerID)
	n := len(c.peers)
	c.mu.Unlock()

	c.metrics.SetPlayersOnline(n)
	return true
}

func (c *Connections) Peer(playerID string) (network.Peer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.peers[playerID]
	return p, ok
}

// Send delivers msg to playerID. Offline identities are skipped.
func (c *Connections) Send(playerID string, msg network.Message) bool {
	p, ok := c.Peer(playerID)
	if !ok {
		return false
	}
	return p.Deliver(msg)
}

func (c *Connections) Broadcast(ids []string, msg network.Message) {
	c.BroadcastExcept(ids, "", msg)
}

// BroadcastExcept sends msg to every id but excluded. Peers are resolved
// under the lock and written to after releasing it.
func (c *Connections) BroadcastExcept(ids []string, excluded string, msg network.Message) {
	targets := make([]network.Peer, 0, len(ids))
	c.mu.RLock()
	for _, id := range ids {
		if id == excluded {
			continue
		}
		if p, ok := c.peers[id]; ok {
			targets = append(targets, p)
		}
	}
	c.mu.RUnlock()

	for _, p := range targets {
		p.Deliver(msg)
	}
}

// Online lists the bound identities in lexical order.
func (c *Connections) Online() []string {
	c.mu.RLock()
	out := make([]string, 0, len(c.peers))
	for id := range c.peers {
		out = append(out, id)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (c *Connections) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.peers)
}
