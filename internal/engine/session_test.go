package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderup/internal/game"
	"orderup/internal/message"
)

func TestStartAnnouncesSession(t *testing.T) {
	m, rec, _ := newTestManager(t, quietGame())
	s := startSession(t, m, "a", "b")

	assert.Equal(t, StateRunning, s.State())
	started := rec.ofType("b", message.TypeSessionStarted)
	require.Len(t, started, 1)

	var p message.SessionStartedPayload
	require.NoError(t, started[0].Decode(&p))
	assert.Equal(t, "room-1", p.RoomID)
	assert.Equal(t, int64(90000), p.DurationMs)
	assert.Equal(t, []string{"a", "b"}, p.Players)
	assert.Equal(t, game.Catalog(), p.Menu)

	assert.Equal(t, 0, s.Score("a"))
	assert.ErrorIs(t, s.Start(), ErrNotIdle)
}

func TestCountdownEndsExactlyOnce(t *testing.T) {
	g := quietGame()
	g.Duration = time.Second
	m, rec, mem := newTestManager(t, g)
	s := startSession(t, m, "a", "b")

	ticks(s, 15)

	snaps := rec.ofType("a", message.TypeStateSnapshot)
	require.Len(t, snaps, 10)
	last := g.Duration.Milliseconds()
	for _, msg := range snaps {
		var p message.SnapshotPayload
		require.NoError(t, msg.Decode(&p))
		assert.LessOrEqual(t, p.TimeRemainingMs, last)
		last = p.TimeRemainingMs
	}
	assert.Equal(t, int64(0), last)

	assert.Len(t, rec.ofType("a", message.TypeSessionEnded), 1)
	assert.Len(t, rec.ofType("b", message.TypeSessionEnded), 1)
	assert.Equal(t, StateTerminated, s.State())
	assert.Nil(t, m.Get("room-1"))

	m.Wait()
	assert.Len(t, mem.Matches(), 1)
}

func TestTimeUpTieKeepsJoinOrder(t *testing.T) {
	g := quietGame()
	g.Duration = time.Second
	m, rec, mem := newTestManager(t, g)
	s := startSession(t, m, "a", "b")

	ticks(s, 10)

	ended := rec.ofType("a", message.TypeSessionEnded)
	require.Len(t, ended, 1)
	p := decodeEnded(t, ended[0])
	assert.False(t, p.Forfeit)
	assert.Equal(t, "time's up", p.Reason)
	assert.Equal(t, []message.RankingEntry{
		{Rank: 1, PlayerID: "a", Score: 0},
		{Rank: 1, PlayerID: "b", Score: 0},
	}, p.Rankings)

	m.Wait()
	assert.Equal(t, []int{0}, mem.History("a"))
	assert.Equal(t, []int{0}, mem.History("b"))
}

func TestRankingOrdersByScore(t *testing.T) {
	m, rec, _ := newTestManager(t, quietGame())
	s := startSession(t, m, "a", "b", "c")
	s.setScore("a", 10, 0)
	s.setScore("b", 30, 0)
	s.setScore("c", 10, 0)

	require.True(t, s.Stop(TimeUp()))

	p := decodeEnded(t, rec.ofType("c", message.TypeSessionEnded)[0])
	assert.Equal(t, []message.RankingEntry{
		{Rank: 1, PlayerID: "b", Score: 30},
		{Rank: 2, PlayerID: "a", Score: 10},
		{Rank: 2, PlayerID: "c", Score: 10},
	}, p.Rankings)
}

func TestForfeitStopIsIdempotent(t *testing.T) {
	m, rec, mem := newTestManager(t, quietGame())
	s := startSession(t, m, "a", "b")
	s.setScore("a", 20, 2)

	assert.True(t, s.Stop(Forfeit("b")))
	assert.False(t, s.Stop(Forfeit("b")))
	assert.False(t, s.Stop(TimeUp()))

	ended := rec.ofType("a", message.TypeSessionEnded)
	require.Len(t, ended, 1)
	p := decodeEnded(t, ended[0])
	assert.True(t, p.Forfeit)
	assert.Equal(t, "b", p.Leaver)
	assert.Contains(t, p.Reason, "b")
	assert.Empty(t, p.Rankings)
	assert.Empty(t, rec.ofType("b", message.TypeSessionEnded))

	// No more snapshots once terminated.
	s.Tick()
	assert.Empty(t, rec.ofType("a", message.TypeStateSnapshot))

	m.Wait()
	matches := mem.Matches()
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Forfeit)
	assert.Equal(t, []int{20}, mem.History("a"))
	assert.Empty(t, mem.History("b"))
}

func TestConcurrentStopEndsOnce(t *testing.T) {
	m, rec, mem := newTestManager(t, quietGame())
	s := startSession(t, m, "a", "b")

	var wg sync.WaitGroup
	var won sync.Map
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if s.Stop(Stopped("shutdown")) {
				won.Store(i, true)
			}
		}(i)
	}
	wg.Wait()

	n := 0
	won.Range(func(_, _ any) bool { n++; return true })
	assert.Equal(t, 1, n)
	assert.Len(t, rec.ofType("a", message.TypeSessionEnded), 1)
	m.Wait()
	assert.Len(t, mem.Matches(), 1)
}

func TestExpiryPenalizesEveryMemberAndStaysServable(t *testing.T) {
	m, _, _ := newTestManager(t, quietGame())
	s := startSession(t, m, "a", "b")
	s.setScore("a", 8, 3)
	s.setScore("b", 2, 1)
	c := s.addCustomer("MILK", 15*time.Second)
	require.Equal(t, 0, c.Slot)

	ticks(s, 149)
	v, ok := s.customerView(c.ID)
	require.True(t, ok)
	assert.Equal(t, string(game.MoodNeutral), v.Mood)
	assert.Equal(t, 8, s.Score("a"))

	s.Tick()
	assert.Equal(t, 3, s.Score("a"))
	assert.Equal(t, 0, s.Score("b"))
	assert.Equal(t, 0, s.Combo("a"))
	assert.Equal(t, 0, s.Combo("b"))
	v, ok = s.customerView(c.ID)
	require.True(t, ok)
	assert.Equal(t, string(game.MoodAngry), v.Mood)
	assert.Equal(t, int64(0), v.Remaining)

	// Angry but not yet removed: a correct serve still counts.
	it := s.addItem("MILK")
	assert.Equal(t, OutcomeMatch, s.Serve("a", it.ID, c.ID))
	assert.Equal(t, 13, s.Score("a"))

	ticks(s, 5)
	_, ok = s.customerView(c.ID)
	assert.False(t, ok)
	s.mu.Lock()
	assert.Equal(t, s.cfg.MaxCustomers, s.slots.Free())
	s.mu.Unlock()
}

func TestTickRecoversFromPanic(t *testing.T) {
	m, rec, _ := newTestManager(t, quietGame())
	s := startSession(t, m, "a")

	s.mu.Lock()
	s.tasks.schedule(0, func() { panic("boom") })
	s.mu.Unlock()

	assert.NotPanics(t, s.Tick)
	assert.Equal(t, StateRunning, s.State())

	s.Tick()
	assert.Len(t, rec.ofType("a", message.TypeStateSnapshot), 1)
}

func TestSpawnsStayWithinBounds(t *testing.T) {
	g := quietGame()
	g.Duration = 30 * time.Second
	g.CustomerSpawnMin = 100 * time.Millisecond
	g.CustomerSpawnMax = 300 * time.Millisecond
	g.ItemSpawnMin = 100 * time.Millisecond
	g.ItemSpawnMax = 200 * time.Millisecond
	g.CustomerTimeout = 2 * time.Second
	g.CustomerTimeoutMin = time.Second
	g.ItemLifetime = 3 * time.Second
	m, _, _ := newTestManager(t, g)
	s := startSession(t, m, "a", "b")

	sawCustomers, sawItems := false, false
	for i := 0; i < 250; i++ {
		s.Tick()
		snap := s.Snapshot()
		assert.LessOrEqual(t, len(snap.Customers), g.MaxCustomers)
		assert.LessOrEqual(t, len(snap.Items), g.MaxItems)

		seen := make(map[int]bool)
		for _, c := range snap.Customers {
			assert.GreaterOrEqual(t, c.Slot, 0)
			assert.Less(t, c.Slot, g.MaxCustomers)
			assert.False(t, seen[c.Slot], "slot %d used twice", c.Slot)
			seen[c.Slot] = true
			assert.True(t, game.ValidItem(c.Request))
		}
		for _, it := range snap.Items {
			assert.True(t, game.ValidItem(it.Name))
		}
		for id, score := range snap.Scores {
			assert.GreaterOrEqual(t, score, 0, "score of %s", id)
		}
		sawCustomers = sawCustomers || len(snap.Customers) > 0
		sawItems = sawItems || len(snap.Items) > 0
	}
	assert.True(t, sawCustomers)
	assert.True(t, sawItems)
}

func TestCustomerTimeoutShrinksOverSession(t *testing.T) {
	g := quietGame()
	g.Duration = 10 * time.Second
	g.CustomerTimeout = 10 * time.Second
	g.CustomerTimeoutMin = 5 * time.Second
	m, _, _ := newTestManager(t, g)
	s := startSession(t, m, "a")

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, 10*time.Second, s.customerTimeout())
	s.elapsed = 5 * time.Second
	assert.Equal(t, 7500*time.Millisecond, s.customerTimeout())
	s.elapsed = 20 * time.Second
	assert.Equal(t, 5*time.Second, s.customerTimeout())
}

func TestItemsExpire(t *testing.T) {
	g := quietGame()
	g.ItemLifetime = 300 * time.Millisecond
	m, _, _ := newTestManager(t, g)
	s := startSession(t, m, "a")
	s.addItem("TEA")

	ticks(s, 2)
	assert.Len(t, s.Snapshot().Items, 1)
	s.Tick()
	assert.Empty(t, s.Snapshot().Items)
}
