// Package lobby tracks rooms, their members and the creator role, and hands
// rooms over to the session engine.
package lobby

import (
	"errors"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"orderup/internal/engine"
	"orderup/internal/message"
	"orderup/internal/metrics"
	"orderup/internal/network"
)

// Notifier reaches connected identities.
type Notifier interface {
	Send(playerID string, msg network.Message) bool
	Broadcast(ids []string, msg network.Message)
	// Online lists the logged-in identities.
	Online() []string
}

// Options tune a Registry.
type Options struct {
	Capacity   int
	MinPlayers int
	Metrics    *metrics.Metrics
}

// Registry owns every room. Lock order is room, then registry; the registry
// lock is never held while taking a room lock.
type Registry struct {
	capacity   int
	minPlayers int
	sessions   *engine.Manager
	notify     Notifier
	metrics    *metrics.Metrics

	mu       sync.RWMutex
	rooms    map[string]*Room
	byPlayer map[string]map[string]struct{}
	seq      uint64
}

func NewRegistry(sessions *engine.Manager, notify Notifier, opts Options) *Registry {
	if opts.Capacity <= 0 {
		opts.Capacity = 4
	}
	if opts.MinPlayers <= 0 {
		opts.MinPlayers = 2
	}
	return &Registry{
		capacity:   opts.Capacity,
		minPlayers: opts.MinPlayers,
		sessions:   sessions,
		notify:     notify,
		metrics:    opts.Metrics,
		rooms:      make(map[string]*Room),
		byPlayer:   make(map[string]map[string]struct{}),
	}
}

// Create opens a room with creatorID as its first member.
func (r *Registry) Create(creatorID string) *Room {
	room := &Room{
		ID:       uuid.NewString(),
		Creator:  creatorID,
		Capacity: r.capacity,
		members:  []string{creatorID},
		state:    StateLobby,
	}

	r.mu.Lock()
	r.seq++
	room.seq = r.seq
	r.rooms[room.ID] = room
	r.indexLocked(creatorID, room.ID)
	r.mu.Unlock()

	log.Printf("[RoomRegistry] %s created room %s", creatorID, room.ID)
	r.notify.Send(creatorID, message.RoomCreated(room.ID, 1))
	r.broadcastList()
	return room
}

// Join adds playerID to the room. The capacity check and the insert happen
// under the room lock, so racing joins cannot overfill it.
func (r *Registry) Join(roomID, playerID string) error {
	room := r.Get(roomID)
	if room == nil {
		return ErrRoomNotFound
	}

	room.mu.Lock()
	switch {
	case room.state == StateClosing:
		room.mu.Unlock()
		return ErrRoomNotFound
	case room.isMemberLocked(playerID):
		room.mu.Unlock()
		return ErrAlreadyMember
	case room.state == StateInSession:
		room.mu.Unlock()
		return ErrRoomInSession
	case len(room.members) >= room.Capacity:
		room.mu.Unlock()
		return ErrRoomFull
	}
	room.members = append(room.members, playerID)
	count := len(room.members)
	others := without(room.members, playerID)
	r.index(playerID, roomID)
	room.mu.Unlock()

	log.Printf("[RoomRegistry] %s joined room %s (%d/%d)", playerID, roomID, count, room.Capacity)
	r.notify.Send(playerID, message.RoomJoined(roomID, count))
	r.notify.Broadcast(others, message.PlayerJoined(roomID, playerID, count))
	r.broadcastList()
	return nil
}

// Leave removes playerID from the room. A running session is forfeited first
// in favour of the remaining members. The room is deleted when it becomes
// empty, or when the creator leaves it outside a session.
func (r *Registry) Leave(roomID, playerID string) error {
	room := r.Get(roomID)
	if room == nil {
		return ErrRoomNotFound
	}

	room.mu.Lock()
	if !room.removeLocked(playerID) {
		room.mu.Unlock()
		return ErrNotMember
	}
	r.unindex(playerID, roomID)
	remaining := room.membersLocked()

	deleteReason := ""
	switch {
	case len(remaining) == 0:
		deleteReason = "room is empty"
	case playerID == room.Creator && room.state == StateLobby:
		deleteReason = "the creator left"
	}
	if deleteReason != "" {
		r.closeLocked(room)
	}
	room.mu.Unlock()

	log.Printf("[RoomRegistry] %s left room %s", playerID, roomID)

	// The session end hook takes the room lock, so stop outside it.
	if s := r.sessions.Get(roomID); s != nil {
		s.Stop(engine.Forfeit(playerID))
	}

	if deleteReason != "" {
		r.delete(room, remaining, deleteReason)
		return nil
	}
	if room.State() == StateClosing {
		// The session end hook already deleted the room.
		return nil
	}
	r.notify.Broadcast(remaining, message.PlayerLeft(roomID, playerID, len(remaining)))
	r.broadcastList()
	return nil
}

// StartSession hands the room to the session engine. Only the creator may
// start, with a member count in [MinPlayers, Capacity].
func (r *Registry) StartSession(roomID, requesterID string) error {
	room := r.Get(roomID)
	if room == nil {
		return ErrRoomNotFound
	}

	room.mu.Lock()
	switch {
	case room.state == StateClosing:
		room.mu.Unlock()
		return ErrRoomNotFound
	case requesterID != room.Creator:
		room.mu.Unlock()
		return ErrNotCreator
	case room.state == StateInSession:
		room.mu.Unlock()
		return ErrSessionActive
	case len(room.members) < r.minPlayers || len(room.members) > room.Capacity:
		room.mu.Unlock()
		return ErrPlayerCount
	}

	// Held across Prepare so no leave can slip in between the state change and
	// the session existing. The announcement goes out after unlocking.
	s, err := r.sessions.Prepare(roomID, room.membersLocked(), func(res engine.Result) {
		r.sessionEnded(roomID, res)
	})
	if err != nil {
		room.mu.Unlock()
		if errors.Is(err, engine.ErrSessionActive) {
			return ErrSessionActive
		}
		return err
	}
	room.state = StateInSession
	room.mu.Unlock()

	s.Launch()
	log.Printf("[RoomRegistry] session started in room %s", roomID)
	r.broadcastList()
	return nil
}

// sessionEnded returns the room to the lobby. A room whose creator left
// during the session is deleted now.
func (r *Registry) sessionEnded(roomID string, res engine.Result) {
	room := r.Get(roomID)
	if room == nil {
		return
	}

	room.mu.Lock()
	if room.state != StateInSession {
		room.mu.Unlock()
		return
	}
	room.state = StateLobby
	creatorGone := !room.isMemberLocked(room.Creator)
	remaining := room.membersLocked()
	if creatorGone {
		r.closeLocked(room)
	}
	room.mu.Unlock()

	log.Printf("[RoomRegistry] room %s back in lobby after %s", roomID, res.Reason.Kind)
	if creatorGone {
		r.delete(room, remaining, "the creator left")
		return
	}
	r.broadcastList()
}

// closeLocked marks the room for deletion and drops every member.
func (r *Registry) closeLocked(room *Room) {
	room.state = StateClosing
	for _, id := range room.members {
		r.unindex(id, room.ID)
	}
	room.members = nil
}

func (r *Registry) delete(room *Room, notify []string, reason string) {
	r.mu.Lock()
	delete(r.rooms, room.ID)
	r.mu.Unlock()

	log.Printf("[RoomRegistry] room %s deleted: %s", room.ID, reason)
	r.notify.Broadcast(notify, message.RoomDeleted(room.ID, reason))
	r.broadcastList()
}

// Get returns the room with roomID, or nil.
func (r *Registry) Get(roomID string) *Room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

// RoomsOf lists the rooms playerID belongs to.
func (r *Registry) RoomsOf(playerID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byPlayer[playerID]))
	for id := range r.byPlayer[playerID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// List summarizes the open rooms, oldest first.
func (r *Registry) List() []message.RoomSummary {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].seq < rooms[j].seq })
	out := make([]message.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		sum := room.summary()
		if sum.State == string(StateClosing) {
			continue
		}
		out = append(out, sum)
	}
	return out
}

// SendList answers a list-rooms request.
func (r *Registry) SendList(playerID string) {
	r.notify.Send(playerID, message.RoomList(r.List()))
}

// broadcastList pushes the room list to every online identity that is not in
// a room.
func (r *Registry) broadcastList() {
	list := r.List()
	r.metrics.SetRoomsOpen(len(list))

	online := r.notify.Online()
	r.mu.RLock()
	browsers := make([]string, 0, len(online))
	for _, id := range online {
		if len(r.byPlayer[id]) == 0 {
			browsers = append(browsers, id)
		}
	}
	r.mu.RUnlock()

	if len(browsers) > 0 {
		r.notify.Broadcast(browsers, message.RoomList(list))
	}
}

func (r *Registry) index(playerID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexLocked(playerID, roomID)
}

func (r *Registry) indexLocked(playerID, roomID string) {
	rooms, ok := r.byPlayer[playerID]
	if !ok {
		rooms = make(map[string]struct{})
		r.byPlayer[playerID] = rooms
	}
	rooms[roomID] = struct{}{}
}

func (r *Registry) unindex(playerID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byPlayer[playerID], roomID)
	if len(r.byPlayer[playerID]) == 0 {
		delete(r.byPlayer, playerID)
	}
}
