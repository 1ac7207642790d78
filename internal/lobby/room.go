package lobby

import (
	"errors"
	"sync"

	"orderup/internal/message"
)

// RoomState is the lifecycle phase of a room.
type RoomState string

const (
	StateLobby     RoomState = "lobby"
	StateInSession RoomState = "in-session"
	StateClosing   RoomState = "closing"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomFull      = errors.New("room is full")
	ErrAlreadyMember = errors.New("already a member of this room")
	ErrNotMember     = errors.New("not a member of this room")
	ErrNotCreator    = errors.New("only the room creator can start the session")
	ErrPlayerCount   = errors.New("not enough players to start")
	ErrSessionActive = errors.New("a session is already running in this room")
	ErrRoomInSession = errors.New("room is in session")
)

// Room groups players before and around a session. Members keep join order.
type Room struct {
	ID       string
	Creator  string
	Capacity int

	seq uint64

	mu      sync.Mutex
	members []string
	state   RoomState
}

func (r *Room) Members() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersLocked()
}

func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Room) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

func (r *Room) summary() message.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return message.RoomSummary{
		RoomID:   r.ID,
		Creator:  r.Creator,
		Count:    len(r.members),
		Capacity: r.Capacity,
		State:    string(r.state),
	}
}

func (r *Room) membersLocked() []string {
	out := make([]string, len(r.members))
	copy(out, r.members)
	return out
}

func (r *Room) isMemberLocked(playerID string) bool {
	for _, id := range r.members {
		if id == playerID {
			return true
		}
	}
	return false
}

func (r *Room) removeLocked(playerID string) bool {
	for i, id := range r.members {
		if id == playerID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// without returns ids minus skip.
func without(ids []string, skip string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}
