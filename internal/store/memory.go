package store

import (
	"context"
	"sort"
	"sync"
)

// Memory is a process-local Store used when no redis is configured.
type Memory struct {
	mu      sync.Mutex
	best    map[string]int
	history map[string][]int
	matches []MatchResult
}

func NewMemory() *Memory {
	return &Memory{
		best:    make(map[string]int),
		history: make(map[string][]int),
	}
}

func (m *Memory) SaveScore(ctx context.Context, playerID string, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.best[playerID]; !ok || score > cur {
		m.best[playerID] = score
	}
	m.history[playerID] = append(m.history[playerID], score)
	return nil
}

func (m *Memory) QueryLeaderboard(ctx context.Context, limit int) ([]Score, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Score, 0, len(m.best))
	for id, s := range m.best {
		out = append(out, Score{PlayerID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) SaveMatchResult(ctx context.Context, result MatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches = append(m.matches, result)
	return nil
}

// Matches returns a copy of the stored results in insertion order.
func (m *Memory) Matches() []MatchResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MatchResult, len(m.matches))
	copy(out, m.matches)
	return out
}

// History returns the recorded scores of playerID, oldest first.
func (m *Memory) History(playerID string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.history[playerID]...)
}
