// Package events tells other services what happened on this server:
// players coming and going, and finished matches.
package events

import (
	"time"

	"orderup/internal/store"
)

const (
	SubjectPresence    = "orderup.presence"
	SubjectMatchResult = "orderup.match.result"
)

// Presence states.
const (
	Online  = "online"
	Offline = "offline"
)

type PresenceEvent struct {
	PlayerID string    `json:"playerId"`
	Status   string    `json:"status"`
	Rooms    []string  `json:"rooms,omitempty"`
	At       time.Time `json:"at"`
}

// Publisher is best effort. Errors are returned for logging only; nothing in
// the game waits on delivery.
type Publisher interface {
	PublishPresence(ev PresenceEvent) error
	PublishMatchResult(result store.MatchResult) error
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) PublishPresence(PresenceEvent) error { return nil }
func (Nop) PublishMatchResult(store.MatchResult) error { return nil }
