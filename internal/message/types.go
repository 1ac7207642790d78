// Package message names every message type carried by the network envelope
// and builds the server -> client messages.
package message

// Client -> server.
const (
	TypeLogin        = "login"
	TypeCreateRoom   = "create-room"
	TypeJoinRoom     = "join-room"
	TypeLeaveRoom    = "leave-room"
	TypeStartSession = "start-session"
	TypePlayerAction = "player-action"
	TypePing         = "ping"
	TypeListRooms    = "list-rooms"
	TypeLeaderboard  = "leaderboard"
)

// Server -> client.
const (
	TypeLoggedIn       = "logged-in"
	TypeRoomCreated    = "room-created"
	TypeRoomJoined     = "room-joined"
	TypeJoinFailed     = "join-failed"
	TypePlayerJoined   = "player-joined"
	TypePlayerLeft     = "player-left"
	TypeStartFailed    = "start-failed"
	TypeSessionStarted = "session-started"
	TypeStateSnapshot  = "state-snapshot"
	TypeSessionEnded   = "session-ended"
	TypeRoomDeleted    = "room-deleted"
	TypeRoomList       = "room-list"
	TypeLeaderboardRes = "leaderboard"
	TypeError          = "error"
	TypePong           = "pong"
)

// ============================================================================
// Client payloads
// ============================================================================

type LoginRequest struct {
	PlayerID string `json:"playerId"`
}

// RoomRequest is shared by join-room, leave-room and start-session.
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type PlayerActionRequest struct {
	ItemID     int64 `json:"itemId"`
	CustomerID int64 `json:"customerId"`
}

type LeaderboardRequest struct {
	Limit int `json:"limit"`
}

// ============================================================================
// Server payloads
// ============================================================================

type LoggedInPayload struct {
	PlayerID string `json:"playerId"`
}

// RoomCountPayload backs room-created and room-joined.
type RoomCountPayload struct {
	RoomID string `json:"roomId"`
	Count  int    `json:"count"`
}

type ReasonPayload struct {
	Reason string `json:"reason"`
}

// MemberPayload backs player-joined and player-left.
type MemberPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
	Count    int    `json:"count"`
}

type SessionStartedPayload struct {
	RoomID     string   `json:"roomId"`
	DurationMs int64    `json:"durationMs"`
	Players    []string `json:"players"`
	Menu       []string `json:"menu"`
}

type CustomerView struct {
	ID        int64   `json:"id"`
	Request   string  `json:"request"`
	Slot      int     `json:"slot"`
	Mood      string  `json:"mood"`
	Remaining int64   `json:"remainingMs"`
	Progress  float64 `json:"progress"`
}

type ItemView struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Remaining int64   `json:"remainingMs"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
}

type SnapshotPayload struct {
	RoomID          string         `json:"roomId"`
	Tick            uint64         `json:"tick"`
	TimeRemainingMs int64          `json:"timeRemainingMs"`
	Customers       []CustomerView `json:"customers"`
	Items           []ItemView     `json:"items"`
	Scores          map[string]int `json:"scores"`
	Combos          map[string]int `json:"combos"`
}

type RankingEntry struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

type SessionEndedPayload struct {
	RoomID   string         `json:"roomId"`
	Reason   string         `json:"reason"`
	Forfeit  bool           `json:"forfeit"`
	Leaver   string         `json:"leaver,omitempty"`
	Rankings []RankingEntry `json:"rankings,omitempty"`
}

type RoomDeletedPayload struct {
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

type RoomSummary struct {
	RoomID   string `json:"roomId"`
	Creator  string `json:"creator"`
	Count    int    `json:"count"`
	Capacity int    `json:"capacity"`
	State    string `json:"state"`
}

type RoomListPayload struct {
	Rooms []RoomSummary `json:"rooms"`
}

type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

type LeaderboardPayload struct {
	Entries []LeaderboardEntry `json:"entries"`
}
