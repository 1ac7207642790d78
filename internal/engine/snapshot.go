package engine

import (
	"sort"

	"orderup/internal/message"
	"orderup/internal/store"
)

// snapshotLocked copies the world into a message payload. The copy shares
// nothing with the session so it can be broadcast after unlocking.
func (s *Session) snapshotLocked() message.SnapshotPayload {
	customers := make([]message.CustomerView, 0, len(s.customers))
	for _, c := range s.customers {
		customers = append(customers, message.CustomerView{
			ID:        c.ID,
			Request:   c.Request,
			Slot:      c.Slot,
			Mood:      string(c.Mood),
			Remaining: c.Remaining.Milliseconds(),
			Progress:  c.Progress(),
		})
	}
	items := make([]message.ItemView, 0, len(s.items))
	for _, it := range s.items {
		items = append(items, message.ItemView{
			ID:        it.ID,
			Name:      it.Name,
			Remaining: it.Remaining.Milliseconds(),
			X:         it.X,
			Y:         it.Y,
		})
	}
	scores := make(map[string]int, len(s.scores))
	for k, v := range s.scores {
		scores[k] = v
	}
	combos := make(map[string]int, len(s.combos))
	for k, v := range s.combos {
		combos[k] = v
	}
	return message.SnapshotPayload{
		RoomID:          s.roomID,
		Tick:            s.tick,
		TimeRemainingMs: s.remaining.Milliseconds(),
		Customers:       customers,
		Items:           items,
		Scores:          scores,
		Combos:          combos,
	}
}

// rankLocked orders members by score, highest first. Equal scores keep join
// order and share a rank.
func (s *Session) rankLocked() []store.Placement {
	out := make([]store.Placement, 0, len(s.members))
	for _, id := range s.members {
		out = append(out, store.Placement{PlayerID: id, Score: s.scores[id]})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out
}

func rankingEntries(ps []store.Placement) []message.RankingEntry {
	out := make([]message.RankingEntry, 0, len(ps))
	for _, p := range ps {
		out = append(out, message.RankingEntry{Rank: p.Rank, PlayerID: p.PlayerID, Score: p.Score})
	}
	return out
}
