package engine

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"orderup/internal/config"
	"orderup/internal/events"
	"orderup/internal/game"
	"orderup/internal/message"
	"orderup/internal/network"
	"orderup/internal/store"
)

// recorder is a Sender that keeps every message per identity.
type recorder struct {
	mu   sync.Mutex
	msgs map[string][]network.Message
}

func newRecorder() *recorder {
	return &recorder{msgs: make(map[string][]network.Message)}
}

func (r *recorder) Broadcast(ids []string, msg network.Message) {
	r.BroadcastExcept(ids, "", msg)
}

func (r *recorder) BroadcastExcept(ids []string, excluded string, msg network.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if id == excluded {
			continue
		}
		r.msgs[id] = append(r.msgs[id], msg)
	}
}

func (r *recorder) ofType(id, typ string) []network.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []network.Message
	for _, m := range r.msgs[id] {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

// quietGame disables random spawns so tests place entities themselves.
func quietGame() config.Game {
	g := config.DefaultGame()
	g.CustomerSpawnMin = time.Hour
	g.CustomerSpawnMax = time.Hour
	g.ItemSpawnMin = time.Hour
	g.ItemSpawnMax = time.Hour
	return g
}

func newTestManager(t *testing.T, g config.Game) (*Manager, *recorder, *store.Memory) {
	t.Helper()
	rec := newRecorder()
	mem := store.NewMemory()
	m := NewManager(g, Deps{
		Sender:     rec,
		Store:      mem,
		Events:     events.Nop{},
		NewRand:    func() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) },
		ManualTick: true,
	})
	return m, rec, mem
}

func startSession(t *testing.T, m *Manager, members ...string) *Session {
	t.Helper()
	s, err := m.Start("room-1", members, nil)
	require.NoError(t, err)
	return s
}

func (s *Session) addCustomer(request string, timeout time.Duration) *game.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots.Acquire()
	if !ok {
		panic("no free slot")
	}
	s.nextID++
	c := &game.Customer{
		ID:        s.nextID,
		Request:   request,
		Slot:      slot,
		Mood:      game.MoodNeutral,
		Remaining: timeout,
		MaxTime:   timeout,
	}
	s.customers = append(s.customers, c)
	return c
}

func (s *Session) addItem(name string) *game.SpawnedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	it := &game.SpawnedItem{ID: s.nextID, Name: name, Remaining: s.cfg.ItemLifetime}
	s.items = append(s.items, it)
	return it
}

func (s *Session) setScore(playerID string, score, combo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[playerID] = score
	s.combos[playerID] = combo
}

func (s *Session) customerView(id int64) (message.CustomerView, bool) {
	for _, c := range s.Snapshot().Customers {
		if c.ID == id {
			return c, true
		}
	}
	return message.CustomerView{}, false
}

func ticks(s *Session, n int) {
	for i := 0; i < n; i++ {
		s.Tick()
	}
}

func decodeEnded(t *testing.T, msg network.Message) message.SessionEndedPayload {
	t.Helper()
	var p message.SessionEndedPayload
	require.NoError(t, msg.Decode(&p))
	return p
}
