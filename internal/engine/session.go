// Package engine runs the authoritative game sessions: the tick loop, spawns,
// serve validation, scoring and the end-of-session handoff to storage.
package engine

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"orderup/internal/config"
	"orderup/internal/events"
	"orderup/internal/game"
	"orderup/internal/message"
	"orderup/internal/metrics"
	"orderup/internal/network"
	"orderup/internal/store"
)

// persistTimeout bounds the storage and publish calls made when a session ends.
const persistTimeout = 5 * time.Second

// Sender delivers messages to identities. Unknown or offline identities are
// skipped silently.
type Sender interface {
	Broadcast(ids []string, msg network.Message)
	BroadcastExcept(ids []string, excluded string, msg network.Message)
}

// Deps are the collaborators shared by every session of a Manager.
type Deps struct {
	Sender  Sender
	Store   store.Store
	Events  events.Publisher
	Metrics *metrics.Metrics

	// NewRand seeds the generator of each session. Defaults to a time seed.
	NewRand func() *rand.Rand

	// ManualTick leaves sessions without a ticker goroutine; the caller steps
	// them with Tick. Used by simulations and tests.
	ManualTick bool
}

// Result describes a finished session.
type Result struct {
	RoomID  string
	Reason  EndReason
	Members []string
	Match   store.MatchResult
}

// Session is one running game inside a room.
type Session struct {
	roomID string
	cfg    config.Game
	deps   Deps
	onEnd  func(Result)

	// pending tracks the background persistence of the end result.
	pending *sync.WaitGroup

	mu        sync.Mutex
	state     State
	members   []string
	scores    map[string]int
	combos    map[string]int
	tick      uint64
	elapsed   time.Duration
	remaining time.Duration

	customers     []*game.Customer
	items         []*game.SpawnedItem
	slots         *game.Slots
	nextID        int64
	customerTimer time.Duration
	itemTimer     time.Duration
	tasks         taskQueue
	rng           *rand.Rand

	launchOnce sync.Once
	stopOnce   sync.Once
	stop       chan struct{}
}

func newSession(roomID string, members []string, cfg config.Game, deps Deps, pending *sync.WaitGroup) *Session {
	rng := newRand()
	if deps.NewRand != nil {
		rng = deps.NewRand()
	}
	m := make([]string, len(members))
	copy(m, members)
	return &Session{
		roomID:  roomID,
		cfg:     cfg,
		deps:    deps,
		pending: pending,
		state:   StateIdle,
		members: m,
		scores:  make(map[string]int, len(m)),
		combos:  make(map[string]int, len(m)),
		slots:   game.NewSlots(cfg.MaxCustomers),
		rng:     rng,
		stop:    make(chan struct{}),
	}
}

func newRand() *rand.Rand {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

// Start moves an idle session to Running, announces it and launches the
// ticker.
func (s *Session) Start() error {
	if err := s.begin(); err != nil {
		return err
	}
	s.Launch()
	return nil
}

// begin resets the world and moves the session to Running. Nothing is sent.
func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrNotIdle
	}
	if len(s.members) == 0 {
		return ErrNoMembers
	}
	for _, id := range s.members {
		s.scores[id] = 0
		s.combos[id] = 0
	}
	s.customers = nil
	s.items = nil
	s.slots.Reset()
	s.tasks.clear()
	s.tick = 0
	s.elapsed = 0
	s.remaining = s.cfg.Duration
	s.customerTimer = s.between(s.cfg.CustomerSpawnMin, s.cfg.CustomerSpawnMax)
	s.itemTimer = s.between(s.cfg.ItemSpawnMin, s.cfg.ItemSpawnMax)
	s.state = StateRunning
	s.deps.Metrics.SessionStarted()
	return nil
}

// Launch announces a running session to its members and starts the ticker
// unless ManualTick is set. Only the first call has effect, and a session
// that already ended is not announced.
func (s *Session) Launch() {
	s.launchOnce.Do(func() {
		s.mu.Lock()
		if s.state != StateRunning {
			s.mu.Unlock()
			return
		}
		members := s.membersLocked()
		s.mu.Unlock()

		log.Printf("[Session %s] started with %v", s.roomID, members)
		s.deps.Sender.Broadcast(members, message.SessionStarted(message.SessionStartedPayload{
			RoomID:     s.roomID,
			DurationMs: s.cfg.Duration.Milliseconds(),
			Players:    members,
			Menu:       game.Catalog(),
		}))
		if !s.deps.ManualTick {
			go s.run()
		}
	})
}

// run drives Tick until the session stops.
func (s *Session) run() {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Stop ends a running session with reason. Only the first call has effect; it
// reports whether this call ended the session.
func (s *Session) Stop(reason EndReason) bool {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return false
	}
	res := s.finishLocked(reason)
	s.mu.Unlock()

	s.complete(res)
	return true
}

// finishLocked moves the session to Ending and freezes the result.
func (s *Session) finishLocked(reason EndReason) Result {
	s.state = StateEnding
	if dropped := s.tasks.clear(); dropped > 0 {
		log.Printf("[Session %s] dropped %d pending effects", s.roomID, dropped)
	}
	return Result{
		RoomID:  s.roomID,
		Reason:  reason,
		Members: s.membersLocked(),
		Match: store.MatchResult{
			ID:       uuid.NewString(),
			RoomID:   s.roomID,
			EndedAt:  time.Now().UTC(),
			Reason:   reason.Text,
			Forfeit:  reason.Kind == EndForfeit,
			Leaver:   reason.Leaver,
			Rankings: s.rankLocked(),
		},
	}
}

// complete runs the Ending phase outside the session lock.
func (s *Session) complete(res Result) {
	s.stopOnce.Do(func() { close(s.stop) })

	payload := message.SessionEndedPayload{
		RoomID:  s.roomID,
		Reason:  res.Reason.Text,
		Forfeit: res.Match.Forfeit,
		Leaver:  res.Reason.Leaver,
	}
	if !payload.Forfeit {
		payload.Rankings = rankingEntries(res.Match.Rankings)
	}
	msg := message.SessionEnded(payload)
	if payload.Forfeit {
		s.deps.Sender.BroadcastExcept(res.Members, res.Reason.Leaver, msg)
	} else {
		s.deps.Sender.Broadcast(res.Members, msg)
	}
	log.Printf("[Session %s] ended (%s): %s", s.roomID, res.Reason.Kind, res.Reason.Text)
	s.deps.Metrics.SessionEnded(string(res.Reason.Kind))

	s.persist(res)

	s.mu.Lock()
	s.state = StateTerminated
	s.mu.Unlock()

	if s.onEnd != nil {
		s.onEnd(res)
	}
}

// persist writes the result in the background so ending never waits on
// storage. Failures are logged and counted.
func (s *Session) persist(res Result) {
	if s.deps.Store == nil && s.deps.Events == nil {
		return
	}
	if s.pending != nil {
		s.pending.Add(1)
	}
	go func() {
		if s.pending != nil {
			defer s.pending.Done()
		}
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if s.deps.Store != nil {
			if err := s.deps.Store.SaveMatchResult(ctx, res.Match); err != nil {
				log.Printf("ERROR: [Session %s] saving match result: %v", s.roomID, err)
				s.deps.Metrics.PersistError()
			}
			for _, p := range res.Match.Rankings {
				if res.Match.Forfeit && p.PlayerID == res.Reason.Leaver {
					continue
				}
				if err := s.deps.Store.SaveScore(ctx, p.PlayerID, p.Score); err != nil {
					log.Printf("ERROR: [Session %s] saving score of %s: %v", s.roomID, p.PlayerID, err)
					s.deps.Metrics.PersistError()
				}
			}
		}
		if s.deps.Events != nil {
			if err := s.deps.Events.PublishMatchResult(res.Match); err != nil {
				log.Printf("WARN: [Session %s] publishing match result: %v", s.roomID, err)
			}
		}
	}()
}

func (s *Session) RoomID() string {
	return s.roomID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Members returns the players in join order.
func (s *Session) Members() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.membersLocked()
}

func (s *Session) HasMember(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isMemberLocked(playerID)
}

func (s *Session) Score(playerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scores[playerID]
}

func (s *Session) Combo(playerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combos[playerID]
}

// Snapshot returns the current world view without broadcasting it.
func (s *Session) Snapshot() message.SnapshotPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) membersLocked() []string {
	out := make([]string, len(s.members))
	copy(out, s.members)
	return out
}

func (s *Session) isMemberLocked(playerID string) bool {
	for _, id := range s.members {
		if id == playerID {
			return true
		}
	}
	return false
}

// between returns a random duration in [lo, hi].
func (s *Session) between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rng.Int64N(int64(hi-lo)+1))
}
