package dispatch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"orderup/internal/events"
	"orderup/internal/message"
	"orderup/internal/network"
)

const (
	leaderboardTimeout = 3 * time.Second
	maxLeaderboard     = 100
)

func (d *Dispatcher) registerGuestHandlers() {
	d.guestRouter[message.TypeLogin] = handleLogin
	d.guestRouter[message.TypePing] = handlePing
}

func (d *Dispatcher) registerPlayerHandlers() {
	d.playerRouter[message.TypeLogin] = handleRelogin
	d.playerRouter[message.TypePing] = handlePing
	d.playerRouter[message.TypeCreateRoom] = handleCreateRoom
	d.playerRouter[message.TypeJoinRoom] = handleJoinRoom
	d.playerRouter[message.TypeLeaveRoom] = handleLeaveRoom
	d.playerRouter[message.TypeStartSession] = handleStartSession
	d.playerRouter[message.TypePlayerAction] = handlePlayerAction
	d.playerRouter[message.TypeListRooms] = handleListRooms
	d.playerRouter[message.TypeLeaderboard] = handleLeaderboard
}

func decode(msg network.Message, v any) error {
	if err := msg.Decode(v); err != nil {
		return &ProtocolError{Type: msg.Type, Err: err}
	}
	return nil
}

func decodeRoom(msg network.Message) (string, error) {
	var req message.RoomRequest
	if err := decode(msg, &req); err != nil {
		return "", err
	}
	if req.RoomID == "" {
		return "", protocolErrorf(msg.Type, "roomId is required")
	}
	return req.RoomID, nil
}

// handleLogin binds the identity to the connection. An older connection of the
// same identity is closed; its rooms are kept for the new one.
func handleLogin(d *Dispatcher, p network.Peer, _ string, msg network.Message) error {
	var req message.LoginRequest
	if err := decode(msg, &req); err != nil {
		return err
	}
	playerID := strings.TrimSpace(req.PlayerID)
	if playerID == "" {
		return protocolErrorf(msg.Type, "playerId is required")
	}

	d.mu.Lock()
	d.peers[p] = playerID
	old := d.conns.Bind(playerID, p)
	if old != nil {
		if _, open := d.peers[old]; open {
			d.peers[old] = ""
		}
	}
	d.mu.Unlock()

	if old != nil {
		log.Printf("[Dispatcher] %s logged in again from %s, closing %s", playerID, p.Addr(), old.Addr())
		old.Close()
	} else {
		log.Printf("[Dispatcher] %s logged in from %s (%d online)", playerID, p.Addr(), d.conns.Count())
	}

	p.Deliver(message.LoggedIn(playerID))
	rooms := d.rooms.RoomsOf(playerID)
	if len(rooms) == 0 {
		d.rooms.SendList(playerID)
	}
	d.publishPresence(playerID, events.Online, rooms)
	return nil
}

func handleRelogin(_ *Dispatcher, _ network.Peer, playerID string, msg network.Message) error {
	return protocolErrorf(msg.Type, "already logged in as %s", playerID)
}

func handlePing(_ *Dispatcher, p network.Peer, _ string, _ network.Message) error {
	p.Deliver(message.Pong())
	return nil
}

func handleCreateRoom(d *Dispatcher, _ network.Peer, playerID string, _ network.Message) error {
	d.rooms.Create(playerID)
	return nil
}

func handleJoinRoom(d *Dispatcher, _ network.Peer, playerID string, msg network.Message) error {
	roomID, err := decodeRoom(msg)
	if err != nil {
		return err
	}
	if err := d.rooms.Join(roomID, playerID); err != nil {
		d.conns.Send(playerID, message.JoinFailed(err.Error()))
	}
	return nil
}

func handleLeaveRoom(d *Dispatcher, _ network.Peer, playerID string, msg network.Message) error {
	roomID, err := decodeRoom(msg)
	if err != nil {
		return err
	}
	if err := d.rooms.Leave(roomID, playerID); err != nil {
		return fmt.Errorf("leave %s: %w", roomID, err)
	}
	return nil
}

func handleStartSession(d *Dispatcher, _ network.Peer, playerID string, msg network.Message) error {
	roomID, err := decodeRoom(msg)
	if err != nil {
		return err
	}
	if err := d.rooms.StartSession(roomID, playerID); err != nil {
		d.conns.Send(playerID, message.StartFailed(err.Error()))
	}
	return nil
}

// handlePlayerAction routes a serve into the running session of the player.
// Without one the action is stale and dropped like any other stale reference.
func handlePlayerAction(d *Dispatcher, _ network.Peer, playerID string, msg network.Message) error {
	var req message.PlayerActionRequest
	if err := decode(msg, &req); err != nil {
		return err
	}
	for _, roomID := range d.rooms.RoomsOf(playerID) {
		s := d.sessions.Get(roomID)
		if s != nil && s.HasMember(playerID) {
			s.Serve(playerID, req.ItemID, req.CustomerID)
			return nil
		}
	}
	return nil
}

func handleListRooms(d *Dispatcher, _ network.Peer, playerID string, _ network.Message) error {
	d.rooms.SendList(playerID)
	return nil
}

// handleLeaderboard queries the store off the hub goroutine.
func handleLeaderboard(d *Dispatcher, p network.Peer, _ string, msg network.Message) error {
	var req message.LeaderboardRequest
	if err := decode(msg, &req); err != nil {
		return err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = d.leaderboardSize
	}
	if limit > maxLeaderboard {
		limit = maxLeaderboard
	}
	if d.store == nil {
		p.Deliver(message.Leaderboard(nil))
		return nil
	}

	d.queries.Add(1)
	go func() {
		defer d.queries.Done()
		ctx, cancel := context.WithTimeout(context.Background(), leaderboardTimeout)
		defer cancel()

		scores, err := d.store.QueryLeaderboard(ctx, limit)
		if err != nil {
			log.Printf("ERROR: [Dispatcher] leaderboard query: %v", err)
			p.Deliver(message.Error("leaderboard unavailable"))
			return
		}
		entries := make([]message.LeaderboardEntry, 0, len(scores))
		for _, s := range scores {
			entries = append(entries, message.LeaderboardEntry{PlayerID: s.PlayerID, Score: s.Score})
		}
		p.Deliver(message.Leaderboard(entries))
	}()
	return nil
}
