package engine

import (
	"log"
	"time"

	"orderup/internal/game"
	"orderup/internal/message"
)

// Tick advances the session by one TickInterval and broadcasts the resulting
// snapshot. A panic inside the step is recovered so the scheduler survives.
func (s *Session) Tick() {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: [Session %s] tick panicked: %v", s.roomID, r)
			s.deps.Metrics.TickPanic()
		}
	}()

	snap, members, res, ok := s.step()
	if !ok {
		return
	}
	s.deps.Sender.Broadcast(members, message.StateSnapshot(snap))
	s.deps.Metrics.ObserveTick(time.Since(start))

	if res != nil {
		s.complete(*res)
	}
}

// step mutates the world under the session lock. It returns the snapshot to
// broadcast and, when the countdown ran out, the frozen result.
func (s *Session) step() (message.SnapshotPayload, []string, *Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return message.SnapshotPayload{}, nil, nil, false
	}

	dt := s.cfg.TickInterval
	s.tick++
	s.elapsed += dt
	s.remaining -= dt
	if s.remaining <= 0 {
		s.remaining = 0
		res := s.finishLocked(TimeUp())
		return s.snapshotLocked(), s.membersLocked(), &res, true
	}

	s.tickCustomers(dt)
	s.tickItems(dt)
	s.spawnCustomer(dt)
	s.spawnItem(dt)
	s.tasks.runDue(s.elapsed)

	return s.snapshotLocked(), s.membersLocked(), nil, true
}

func (s *Session) tickCustomers(dt time.Duration) {
	for _, c := range s.customers {
		if !c.Waiting() {
			continue
		}
		c.Remaining -= dt
		if c.Remaining > 0 {
			continue
		}
		c.Remaining = 0
		c.Expired = true
		c.Mood = game.MoodAngry
		for _, id := range s.members {
			s.scores[id] = floorZero(s.scores[id] - s.cfg.ExpiryPenalty)
			s.combos[id] = 0
		}
		id := c.ID
		s.tasks.schedule(s.elapsed+s.cfg.MoodDelay, func() { s.removeCustomer(id) })
	}
}

func (s *Session) tickItems(dt time.Duration) {
	kept := s.items[:0]
	for _, it := range s.items {
		it.Remaining -= dt
		if it.Remaining > 0 {
			kept = append(kept, it)
		}
	}
	clear(s.items[len(kept):])
	s.items = kept
}

func (s *Session) spawnCustomer(dt time.Duration) {
	s.customerTimer -= dt
	if s.customerTimer > 0 {
		return
	}
	slot, ok := s.slots.Acquire()
	if !ok {
		// Spawn as soon as a slot frees up.
		return
	}
	timeout := s.customerTimeout()
	s.nextID++
	s.customers = append(s.customers, &game.Customer{
		ID:        s.nextID,
		Request:   game.RandomItem(s.rng),
		Slot:      slot,
		Mood:      game.MoodNeutral,
		Remaining: timeout,
		MaxTime:   timeout,
	})
	s.customerTimer = s.between(s.cfg.CustomerSpawnMin, s.cfg.CustomerSpawnMax)
}

func (s *Session) spawnItem(dt time.Duration) {
	s.itemTimer -= dt
	if s.itemTimer > 0 || len(s.items) >= s.cfg.MaxItems {
		return
	}
	s.nextID++
	s.items = append(s.items, &game.SpawnedItem{
		ID:        s.nextID,
		Name:      game.RandomItem(s.rng),
		Remaining: s.cfg.ItemLifetime,
		X:         s.rng.Float64(),
		Y:         s.rng.Float64(),
	})
	s.itemTimer = s.between(s.cfg.ItemSpawnMin, s.cfg.ItemSpawnMax)
}

// customerTimeout shrinks linearly from CustomerTimeout to CustomerTimeoutMin
// over the session.
func (s *Session) customerTimeout() time.Duration {
	hi, lo := s.cfg.CustomerTimeout, s.cfg.CustomerTimeoutMin
	if lo >= hi || s.cfg.Duration <= 0 {
		return hi
	}
	progress := float64(s.elapsed) / float64(s.cfg.Duration)
	if progress > 1 {
		progress = 1
	}
	return hi - time.Duration(progress*float64(hi-lo))
}

// removeCustomer frees the customer's slot. Removing twice is a no-op.
func (s *Session) removeCustomer(id int64) {
	for i, c := range s.customers {
		if c.ID != id {
			continue
		}
		s.slots.Release(c.Slot)
		s.customers = append(s.customers[:i], s.customers[i+1:]...)
		return
	}
}

func (s *Session) removeItem(id int64) {
	for i, it := range s.items {
		if it.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

func (s *Session) findCustomer(id int64) *game.Customer {
	for _, c := range s.customers {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (s *Session) findItem(id int64) *game.SpawnedItem {
	for _, it := range s.items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func floorZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
