package dispatch

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderup/internal/config"
	"orderup/internal/engine"
	"orderup/internal/events"
	"orderup/internal/lobby"
	"orderup/internal/message"
	"orderup/internal/network"
	"orderup/internal/store"
)

type fakePeer struct {
	name string

	mu     sync.Mutex
	msgs   []network.Message
	closed bool
}

func newPeer(name string) *fakePeer {
	return &fakePeer{name: name}
}

func (p *fakePeer) Deliver(msg network.Message) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.msgs = append(p.msgs, msg)
	return true
}

func (p *fakePeer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *fakePeer) Addr() string { return p.name }

func (p *fakePeer) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakePeer) ofType(typ string) []network.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []network.Message
	for _, m := range p.msgs {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

func (p *fakePeer) last(typ string) network.Message {
	msgs := p.ofType(typ)
	if len(msgs) == 0 {
		return network.Message{}
	}
	return msgs[len(msgs)-1]
}

type recordingPublisher struct {
	mu       sync.Mutex
	presence []events.PresenceEvent
}

func (r *recordingPublisher) PublishPresence(ev events.PresenceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence = append(r.presence, ev)
	return nil
}

func (r *recordingPublisher) PublishMatchResult(store.MatchResult) error { return nil }

func (r *recordingPublisher) statuses(playerID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.presence {
		if ev.PlayerID == playerID {
			out = append(out, ev.Status)
		}
	}
	return out
}

type harness struct {
	d        *Dispatcher
	conns    *Connections
	rooms    *lobby.Registry
	sessions *engine.Manager
	store    *store.Memory
	events   *recordingPublisher
}

func newHarness(t *testing.T, g config.Game) *harness {
	t.Helper()
	conns := NewConnections(nil)
	mem := store.NewMemory()
	pub := &recordingPublisher{}
	sessions := engine.NewManager(g, engine.Deps{
		Sender:     conns,
		Store:      mem,
		Events:     pub,
		NewRand:    func() *rand.Rand { return rand.New(rand.NewPCG(3, 4)) },
		ManualTick: true,
	})
	rooms := lobby.NewRegistry(sessions, conns, lobby.Options{Capacity: 4, MinPlayers: 2})
	d := New(conns, rooms, sessions, Options{Store: mem, Events: pub, LeaderboardSize: 5})
	return &harness{d: d, conns: conns, rooms: rooms, sessions: sessions, store: mem, events: pub}
}

func quietGame() config.Game {
	g := config.DefaultGame()
	g.CustomerSpawnMin, g.CustomerSpawnMax = time.Hour, time.Hour
	g.ItemSpawnMin, g.ItemSpawnMax = time.Hour, time.Hour
	return g
}

func send(h *harness, p network.Peer, typ string, payload any) {
	h.d.OnMessage(p, network.NewMessage(typ, payload))
}

func (h *harness) login(t *testing.T, name string) *fakePeer {
	t.Helper()
	p := newPeer(name + "-conn")
	h.d.OnConnect(p)
	send(h, p, message.TypeLogin, message.LoginRequest{PlayerID: name})
	require.Len(t, p.ofType(message.TypeLoggedIn), 1)
	return p
}

func reason(t *testing.T, msg network.Message) string {
	t.Helper()
	var r message.ReasonPayload
	require.NoError(t, msg.Decode(&r))
	return r.Reason
}

func TestGuestsMustLogIn(t *testing.T) {
	h := newHarness(t, quietGame())
	p := newPeer("guest")
	h.d.OnConnect(p)

	send(h, p, message.TypeCreateRoom, nil)
	require.Len(t, p.ofType(message.TypeError), 1)
	assert.Contains(t, reason(t, p.last(message.TypeError)), "login first")

	send(h, p, message.TypePing, nil)
	assert.Len(t, p.ofType(message.TypePong), 1)

	send(h, p, message.TypeLogin, message.LoginRequest{PlayerID: "  "})
	assert.Len(t, p.ofType(message.TypeError), 2)
	assert.Empty(t, h.conns.Online())
	assert.False(t, p.isClosed())
}

func TestLoginBindsIdentity(t *testing.T) {
	h := newHarness(t, quietGame())
	p := h.login(t, "alice")

	var li message.LoggedInPayload
	require.NoError(t, p.last(message.TypeLoggedIn).Decode(&li))
	assert.Equal(t, "alice", li.PlayerID)
	assert.Len(t, p.ofType(message.TypeRoomList), 1)
	assert.Equal(t, []string{"alice"}, h.conns.Online())
	assert.Equal(t, []string{events.Online}, h.events.statuses("alice"))

	send(h, p, message.TypeLogin, message.LoginRequest{PlayerID: "bob"})
	assert.Contains(t, reason(t, p.last(message.TypeError)), "already logged in")
}

func TestProtocolErrorsKeepConnection(t *testing.T) {
	h := newHarness(t, quietGame())
	p := h.login(t, "alice")

	h.d.OnMessage(p, network.Message{Type: message.TypeJoinRoom, Payload: json.RawMessage(`"oops"`)})
	send(h, p, message.TypeJoinRoom, message.RoomRequest{})
	send(h, p, "dance", nil)

	assert.Len(t, p.ofType(message.TypeError), 3)
	assert.Contains(t, reason(t, p.last(message.TypeError)), "unknown")
	assert.False(t, p.isClosed())

	send(h, p, message.TypePing, nil)
	assert.Len(t, p.ofType(message.TypePong), 1)
}

func TestReloginReplacesConnection(t *testing.T) {
	h := newHarness(t, quietGame())
	first := h.login(t, "alice")
	send(h, first, message.TypeCreateRoom, nil)
	rooms := h.rooms.RoomsOf("alice")
	require.Len(t, rooms, 1)

	second := h.login(t, "alice")
	assert.True(t, first.isClosed())

	// The stale connection going away must not touch the new binding.
	h.d.OnDisconnect(first)
	peer, ok := h.conns.Peer("alice")
	require.True(t, ok)
	assert.Same(t, second, peer)
	assert.Equal(t, rooms, h.rooms.RoomsOf("alice"))
}

func TestRoomFlowThroughMessages(t *testing.T) {
	h := newHarness(t, quietGame())
	a := h.login(t, "a")
	b := h.login(t, "b")

	send(h, a, message.TypeCreateRoom, nil)
	var created message.RoomCountPayload
	require.NoError(t, a.last(message.TypeRoomCreated).Decode(&created))

	// b was browsing and saw the room appear.
	var list message.RoomListPayload
	require.NoError(t, b.last(message.TypeRoomList).Decode(&list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, created.RoomID, list.Rooms[0].RoomID)

	send(h, a, message.TypeStartSession, message.RoomRequest{RoomID: created.RoomID})
	assert.Equal(t, lobby.ErrPlayerCount.Error(), reason(t, a.last(message.TypeStartFailed)))

	send(h, b, message.TypeJoinRoom, message.RoomRequest{RoomID: "missing"})
	assert.Equal(t, lobby.ErrRoomNotFound.Error(), reason(t, b.last(message.TypeJoinFailed)))

	send(h, b, message.TypeJoinRoom, message.RoomRequest{RoomID: created.RoomID})
	assert.Len(t, b.ofType(message.TypeRoomJoined), 1)
	assert.Len(t, a.ofType(message.TypePlayerJoined), 1)

	send(h, b, message.TypeStartSession, message.RoomRequest{RoomID: created.RoomID})
	assert.Equal(t, lobby.ErrNotCreator.Error(), reason(t, b.last(message.TypeStartFailed)))

	send(h, a, message.TypeStartSession, message.RoomRequest{RoomID: created.RoomID})
	assert.Len(t, a.ofType(message.TypeSessionStarted), 1)
	assert.Len(t, b.ofType(message.TypeSessionStarted), 1)

	send(h, b, message.TypeLeaveRoom, message.RoomRequest{RoomID: "missing"})
	assert.Contains(t, reason(t, b.last(message.TypeError)), lobby.ErrRoomNotFound.Error())
}

func TestPlayerActionServesInRunningSession(t *testing.T) {
	g := config.DefaultGame()
	g.Duration = time.Minute
	g.CustomerSpawnMin, g.CustomerSpawnMax = 100*time.Millisecond, 200*time.Millisecond
	g.ItemSpawnMin, g.ItemSpawnMax = 100*time.Millisecond, 100*time.Millisecond
	h := newHarness(t, g)
	a := h.login(t, "a")
	b := h.login(t, "b")

	// Without a session actions are dropped silently.
	send(h, a, message.TypePlayerAction, message.PlayerActionRequest{ItemID: 1, CustomerID: 2})
	assert.Empty(t, a.ofType(message.TypeError))

	room := h.rooms.Create("a")
	require.NoError(t, h.rooms.Join(room.ID, "b"))
	require.NoError(t, h.rooms.StartSession(room.ID, "a"))
	s := h.sessions.Get(room.ID)
	require.NotNil(t, s)

	var itemID, customerID int64
	for i := 0; i < 600 && itemID == 0; i++ {
		s.Tick()
		snap := s.Snapshot()
		for _, c := range snap.Customers {
			if c.Mood != "neutral" {
				continue
			}
			for _, it := range snap.Items {
				if it.Name == c.Request {
					itemID, customerID = it.ID, c.ID
				}
			}
		}
	}
	require.NotZero(t, itemID, "no servable pair spawned")

	before := s.Score("b")
	send(h, b, message.TypePlayerAction, message.PlayerActionRequest{ItemID: itemID, CustomerID: customerID})
	assert.Greater(t, s.Score("b"), before)
	assert.Equal(t, 1, s.Combo("b"))

	// The item is gone; the same action is now stale.
	score := s.Score("b")
	send(h, b, message.TypePlayerAction, message.PlayerActionRequest{ItemID: itemID, CustomerID: customerID})
	assert.Equal(t, score, s.Score("b"))
	assert.Empty(t, b.ofType(message.TypeError))
}

func TestDisconnectForfeitsSession(t *testing.T) {
	h := newHarness(t, quietGame())
	a := h.login(t, "a")
	b := h.login(t, "b")

	room := h.rooms.Create("a")
	require.NoError(t, h.rooms.Join(room.ID, "b"))
	require.NoError(t, h.rooms.StartSession(room.ID, "a"))

	b.Close()
	h.d.OnDisconnect(b)

	ended := a.ofType(message.TypeSessionEnded)
	require.Len(t, ended, 1)
	var p message.SessionEndedPayload
	require.NoError(t, ended[0].Decode(&p))
	assert.True(t, p.Forfeit)
	assert.Equal(t, "b", p.Leaver)
	assert.Contains(t, p.Reason, "b")
	assert.Empty(t, b.ofType(message.TypeSessionEnded))

	assert.Len(t, a.ofType(message.TypePlayerLeft), 1)
	assert.Equal(t, lobby.StateLobby, room.State())
	assert.Nil(t, h.sessions.Get(room.ID))
	assert.Empty(t, h.rooms.RoomsOf("b"))
	assert.Equal(t, []string{"a"}, h.conns.Online())
	assert.Equal(t, []string{events.Online, events.Offline}, h.events.statuses("b"))
}

func TestLeaderboardQuery(t *testing.T) {
	h := newHarness(t, quietGame())
	ctx := context.Background()
	require.NoError(t, h.store.SaveScore(ctx, "x", 50))
	require.NoError(t, h.store.SaveScore(ctx, "y", 70))
	require.NoError(t, h.store.SaveScore(ctx, "z", 10))
	p := h.login(t, "alice")

	send(h, p, message.TypeLeaderboard, message.LeaderboardRequest{Limit: 2})
	h.d.Wait()

	var lb message.LeaderboardPayload
	require.NoError(t, p.last(message.TypeLeaderboardRes).Decode(&lb))
	assert.Equal(t, []message.LeaderboardEntry{
		{PlayerID: "y", Score: 70},
		{PlayerID: "x", Score: 50},
	}, lb.Entries)
}
