package engine

import "orderup/internal/game"

// Serve applies playerID dragging item itemID onto customer customerID.
// Stale references and non-members yield OutcomeStale and change nothing.
func (s *Session) Serve(playerID string, itemID, customerID int64) Outcome {
	outcome := s.serve(playerID, itemID, customerID)
	s.deps.Metrics.Action(outcome.String())
	return outcome
}

func (s *Session) serve(playerID string, itemID, customerID int64) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning || !s.isMemberLocked(playerID) {
		return OutcomeStale
	}
	item := s.findItem(itemID)
	cust := s.findCustomer(customerID)
	if item == nil || cust == nil || cust.Served {
		return OutcomeStale
	}

	if item.Matches(cust) {
		s.combos[playerID]++
		s.scores[playerID] += s.cfg.BasePoints * s.combos[playerID]
		cust.Mood = game.MoodHappy
		cust.Served = true
		s.removeItem(itemID)
		s.tasks.schedule(s.elapsed+s.cfg.MoodDelay, func() { s.removeCustomer(customerID) })
		return OutcomeMatch
	}

	s.combos[playerID] = 0
	s.scores[playerID] = floorZero(s.scores[playerID] - s.cfg.WrongPenalty)
	cust.Mood = game.MoodAngry
	if cust.Waiting() {
		s.tasks.schedule(s.elapsed+s.cfg.MoodDelay, func() { s.calmCustomer(customerID) })
	}
	return OutcomeMismatch
}

// calmCustomer resets an angry customer who is still waiting.
func (s *Session) calmCustomer(id int64) {
	c := s.findCustomer(id)
	if c == nil || !c.Waiting() || c.Mood != game.MoodAngry {
		return
	}
	c.Mood = game.MoodNeutral
}
