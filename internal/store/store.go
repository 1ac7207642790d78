// Package store persists scores and match results. The engine only sees the
// narrow Store interface.
package store

import (
	"context"
	"time"
)

// Score is one leaderboard row.
type Score struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// Placement is one player's final position in a match.
type Placement struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// MatchResult is written once per finished session.
type MatchResult struct {
	ID       string      `json:"id"`
	RoomID   string      `json:"roomId"`
	EndedAt  time.Time   `json:"endedAt"`
	Reason   string      `json:"reason"`
	Forfeit  bool        `json:"forfeit"`
	Leaver   string      `json:"leaver,omitempty"`
	Rankings []Placement `json:"rankings"`
}

type Store interface {
	// SaveScore records one finished-session score for playerID.
	SaveScore(ctx context.Context, playerID string, score int) error
	// QueryLeaderboard returns the best scores, highest first.
	QueryLeaderboard(ctx context.Context, limit int) ([]Score, error)
	SaveMatchResult(ctx context.Context, result MatchResult) error
}
