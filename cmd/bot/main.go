// Command bot is a load and smoke test client. Its BOT_ROLE decides what it
// does: HOST creates a room and starts sessions, JOINER joins open rooms and
// PINGER only measures round trips. Hosts and joiners serve greedily.
package main

import (
	"fmt"
	"log"
	"math/rand/v2"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"orderup/internal/cluster"
	"orderup/internal/message"
	"orderup/internal/network"
)

const (
	roleHost   = "HOST"
	roleJoiner = "JOINER"
	rolePinger = "PINGER"

	readTimeout = 120 * time.Second
)

type bot struct {
	id         string
	role       string
	minPlayers int

	mu     sync.Mutex
	conn   *websocket.Conn
	room   string
	count  int
	served map[int64]bool
	busy   bool
	pinged time.Time
}

func main() {
	role := getEnv("BOT_ROLE", roleJoiner)
	switch role {
	case roleHost, roleJoiner, rolePinger:
	default:
		log.Fatalf("FATAL: unknown BOT_ROLE %q", role)
	}

	addr, err := resolveAddr()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Printf("FAIL (%s): could not connect to %s: %v", role, u.String(), err)
		os.Exit(1)
	}
	defer conn.Close()

	minPlayers, _ := strconv.Atoi(getEnv("BOT_MIN_PLAYERS", "2"))
	b := &bot{
		id:         getEnv("BOT_PLAYER_ID", fmt.Sprintf("%s-%04d", role, rand.IntN(10000))),
		role:       role,
		minPlayers: minPlayers,
		conn:       conn,
		served:     make(map[int64]bool),
	}
	if err := b.run(); err != nil {
		log.Printf("FAIL (%s): %v", b.id, err)
		os.Exit(1)
	}
}

// resolveAddr prefers BOT_SERVER_ADDR and falls back to consul discovery.
func resolveAddr() (string, error) {
	if addr := os.Getenv("BOT_SERVER_ADDR"); addr != "" {
		return addr, nil
	}
	consulAddr := os.Getenv("CONSUL_HTTP_ADDR")
	if consulAddr == "" {
		return "localhost:8080", nil
	}
	client, err := cluster.NewConsulClient(consulAddr)
	if err != nil {
		return "", err
	}
	return cluster.Discover(client, getEnv("BOT_TARGET_SERVICE", "orderup"))
}

func (b *bot) run() error {
	if err := b.send(message.TypeLogin, message.LoginRequest{PlayerID: b.id}); err != nil {
		return err
	}
	for {
		b.conn.SetReadDeadline(time.Now().Add(readTimeout))
		var msg network.Message
		if err := b.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("connection lost: %w", err)
		}
		b.handle(msg)
	}
}

func (b *bot) send(msgType string, payload any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn.WriteJSON(network.NewMessage(msgType, payload))
}

// later sends after a random think time without blocking the read loop.
func (b *bot) later(lo, hi time.Duration, msgType string, payload any) {
	d := lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
	time.AfterFunc(d, func() {
		if err := b.send(msgType, payload); err != nil {
			log.Printf("WARN (%s): sending %s: %v", b.id, msgType, err)
		}
	})
}

func (b *bot) handle(msg network.Message) {
	switch msg.Type {
	case message.TypeLoggedIn:
		log.Printf("SUCCESS (%s): logged in", b.id)
		switch b.role {
		case roleHost:
			b.send(message.TypeCreateRoom, nil)
		case rolePinger:
			b.ping()
		}

	case message.TypeRoomList:
		if b.role != roleJoiner || b.currentRoom() != "" {
			return
		}
		var p message.RoomListPayload
		if msg.Decode(&p) != nil {
			return
		}
		if roomID, ok := pickRoom(p.Rooms); ok {
			b.send(message.TypeJoinRoom, message.RoomRequest{RoomID: roomID})
		}

	case message.TypeRoomCreated, message.TypeRoomJoined:
		var p message.RoomCountPayload
		if msg.Decode(&p) != nil {
			return
		}
		b.setRoom(p.RoomID, p.Count)
		log.Printf("SUCCESS (%s): in room %s (%d players)", b.id, p.RoomID, p.Count)

	case message.TypePlayerJoined, message.TypePlayerLeft:
		var p message.MemberPayload
		if msg.Decode(&p) != nil {
			return
		}
		b.setRoom(p.RoomID, p.Count)
		if b.role == roleHost && msg.Type == message.TypePlayerJoined && p.Count >= b.minPlayers {
			b.later(time.Second, 2*time.Second, message.TypeStartSession, message.RoomRequest{RoomID: p.RoomID})
		}

	case message.TypeJoinFailed, message.TypeStartFailed, message.TypeError:
		var p message.ReasonPayload
		msg.Decode(&p)
		log.Printf("WARN (%s): %s: %s", b.id, msg.Type, p.Reason)
		if b.role == roleJoiner && msg.Type == message.TypeJoinFailed {
			b.later(time.Second, 3*time.Second, message.TypeListRooms, nil)
		}

	case message.TypeSessionStarted:
		b.mu.Lock()
		b.served = make(map[int64]bool)
		b.mu.Unlock()
		log.Printf("SUCCESS (%s): session started", b.id)

	case message.TypeStateSnapshot:
		var p message.SnapshotPayload
		if msg.Decode(&p) != nil {
			return
		}
		b.act(p)

	case message.TypeSessionEnded:
		var p message.SessionEndedPayload
		if msg.Decode(&p) != nil {
			return
		}
		log.Printf("SUCCESS (%s): session ended (%s) %+v", b.id, p.Reason, p.Rankings)
		if b.role == roleHost {
			b.later(3*time.Second, 5*time.Second, message.TypeStartSession, message.RoomRequest{RoomID: p.RoomID})
		}

	case message.TypeRoomDeleted:
		b.setRoom("", 0)
		if b.role == roleJoiner {
			b.send(message.TypeListRooms, nil)
		}

	case message.TypePong:
		b.mu.Lock()
		rtt := time.Since(b.pinged)
		b.mu.Unlock()
		log.Printf("SUCCESS (%s): round trip %v", b.id, rtt)
		time.AfterFunc(5*time.Second, b.ping)
	}
}

func (b *bot) ping() {
	b.mu.Lock()
	b.pinged = time.Now()
	b.mu.Unlock()
	if err := b.send(message.TypePing, nil); err != nil {
		log.Printf("WARN (%s): ping: %v", b.id, err)
	}
}

// act serves one customer per snapshot, with a short reaction time.
func (b *bot) act(snap message.SnapshotPayload) {
	b.mu.Lock()
	if b.busy {
		b.mu.Unlock()
		return
	}
	itemID, customerID, ok := pickServe(snap, b.served)
	if !ok {
		b.mu.Unlock()
		return
	}
	b.served[itemID] = true
	b.busy = true
	b.mu.Unlock()

	d := time.Duration(200+rand.IntN(400)) * time.Millisecond
	time.AfterFunc(d, func() {
		b.send(message.TypePlayerAction, message.PlayerActionRequest{ItemID: itemID, CustomerID: customerID})
		b.mu.Lock()
		b.busy = false
		b.mu.Unlock()
	})
}

func (b *bot) setRoom(roomID string, count int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.room = roomID
	b.count = count
}

func (b *bot) currentRoom() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.room
}

// pickServe returns the first waiting customer, by patience left, that has a
// matching item on the counter.
func pickServe(snap message.SnapshotPayload, skip map[int64]bool) (int64, int64, bool) {
	var best *message.CustomerView
	var bestItem int64
	for i := range snap.Customers {
		c := &snap.Customers[i]
		if c.Mood == "happy" {
			continue
		}
		for _, it := range snap.Items {
			if it.Name != c.Request || skip[it.ID] {
				continue
			}
			if best == nil || c.Remaining < best.Remaining {
				best, bestItem = c, it.ID
			}
			break
		}
	}
	if best == nil {
		return 0, 0, false
	}
	return bestItem, best.ID, true
}

// pickRoom returns the first lobby room with a free place.
func pickRoom(rooms []message.RoomSummary) (string, bool) {
	for _, r := range rooms {
		if r.State == "lobby" && r.Count < r.Capacity {
			return r.RoomID, true
		}
	}
	return "", false
}

func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}
