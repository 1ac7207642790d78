package engine

import (
	"errors"
	"fmt"
)

// State is the lifecycle phase of a session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateEnding
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateEnding:
		return "ending"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrSessionActive = errors.New("a session is already running in this room")
	ErrNotIdle       = errors.New("session was already started")
	ErrNoMembers     = errors.New("session needs at least one member")
)

// EndKind classifies why a session ended.
type EndKind string

const (
	EndTimeUp  EndKind = "timeout"
	EndForfeit EndKind = "forfeit"
	EndStopped EndKind = "stopped"
)

// EndReason is carried into the session-ended broadcast and the stored result.
type EndReason struct {
	Kind   EndKind
	Text   string
	Leaver string
}

func TimeUp() EndReason {
	return EndReason{Kind: EndTimeUp, Text: "time's up"}
}

// Forfeit ends the session because leaver left or dropped. The remaining
// members win without normal scoring.
func Forfeit(leaver string) EndReason {
	return EndReason{
		Kind:   EndForfeit,
		Text:   fmt.Sprintf("opponent left: %s", leaver),
		Leaver: leaver,
	}
}

// Stopped is an administrative stop, e.g. server shutdown.
func Stopped(text string) EndReason {
	return EndReason{Kind: EndStopped, Text: text}
}

// Outcome is the result of one serve action.
type Outcome int

const (
	// OutcomeStale means a reference no longer resolved. Nothing changed and
	// nothing is reported; the next snapshot reconciles the client.
	OutcomeStale Outcome = iota
	OutcomeMatch
	OutcomeMismatch
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatch:
		return "match"
	case OutcomeMismatch:
		return "mismatch"
	}
	return "stale"
}
