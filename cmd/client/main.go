// Command client is an interactive console client. Type "help" for commands.
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"orderup/internal/message"
	"orderup/internal/network"
)

const usage = `commands:
  login <id>            bind your identity
  rooms                 list open rooms
  create                create a room
  join <roomId>         join a room
  leave <roomId>        leave a room
  start <roomId>        start the session (creator only)
  serve <item> <cust>   drag item onto customer
  board                 show the latest snapshot
  top [n]               leaderboard
  ping                  websocket round trip
  quit`

var errQuit = errors.New("quit")

// board keeps the last snapshot so it can be shown on demand instead of
// printing ten snapshots a second.
type board struct {
	mu   sync.Mutex
	snap *message.SnapshotPayload
}

func (b *board) set(s message.SnapshotPayload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snap = &s
}

func (b *board) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.snap == nil {
		return "no session running"
	}
	s := b.snap
	var sb strings.Builder
	fmt.Fprintf(&sb, "room %s  time left %.1fs\n", s.RoomID, float64(s.TimeRemainingMs)/1000)
	sb.WriteString("customers:\n")
	for _, c := range s.Customers {
		fmt.Fprintf(&sb, "  #%-4d slot %d wants %-6s %-7s %3.0f%%\n", c.ID, c.Slot, c.Request, c.Mood, c.Progress*100)
	}
	sb.WriteString("items:\n")
	for _, it := range s.Items {
		fmt.Fprintf(&sb, "  #%-4d %-6s %.1fs\n", it.ID, it.Name, float64(it.Remaining)/1000)
	}
	ids := make([]string, 0, len(s.Scores))
	for id := range s.Scores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	sb.WriteString("scores:\n")
	for _, id := range ids {
		fmt.Fprintf(&sb, "  %-12s %5d  x%d\n", id, s.Scores[id], s.Combos[id])
	}
	return sb.String()
}

func main() {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	addresses := []string{"localhost:8080"}
	if env := os.Getenv("ORDERUP_ADDRESSES"); env != "" {
		addresses = strings.Split(env, ",")
	}
	conn, err := dialAny(addresses)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(msg network.Message) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	pongs := make(chan time.Time, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongs <- time.Now():
		default:
		}
		return nil
	})

	b := &board{}
	done := make(chan struct{})
	go readLoop(conn, b, done)

	go func() {
		fmt.Println(usage)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch line {
			case "":
				continue
			case "help":
				fmt.Println(usage)
				continue
			case "board":
				fmt.Print(b.String())
				continue
			case "ping":
				measurePing(conn, &writeMu, pongs)
				continue
			}
			msg, err := parseCommand(line)
			if errors.Is(err, errQuit) {
				interrupt <- os.Interrupt
				return
			}
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := write(msg); err != nil {
				log.Printf("ERROR: sending %s: %v", msg.Type, err)
			}
		}
	}()

	select {
	case <-done:
		log.Println("disconnected from server")
	case <-interrupt:
		writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
	}
}

// dialAny connects to the first address that accepts a websocket.
func dialAny(addresses []string) (*websocket.Conn, error) {
	for _, addr := range addresses {
		u := url.URL{Scheme: "ws", Host: strings.TrimSpace(addr), Path: "/ws"}
		conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
		if err == nil {
			log.Printf("connected to %s", u.String())
			return conn, nil
		}
		log.Printf("WARN: cannot connect to %s: %v", addr, err)
		if resp != nil {
			log.Printf("WARN: response status: %s", resp.Status)
		}
	}
	return nil, fmt.Errorf("no server reachable in %v", addresses)
}

// parseCommand turns one console line into a client message.
func parseCommand(line string) (network.Message, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return network.Message{}, errors.New("empty command")
	}
	arg := func(i int) (string, error) {
		if len(fields) <= i {
			return "", fmt.Errorf("%s: missing argument", fields[0])
		}
		return fields[i], nil
	}
	room := func(msgType string) (network.Message, error) {
		id, err := arg(1)
		if err != nil {
			return network.Message{}, err
		}
		return network.NewMessage(msgType, message.RoomRequest{RoomID: id}), nil
	}

	switch fields[0] {
	case "quit", "exit":
		return network.Message{}, errQuit
	case "login":
		id, err := arg(1)
		if err != nil {
			return network.Message{}, err
		}
		return network.NewMessage(message.TypeLogin, message.LoginRequest{PlayerID: id}), nil
	case "rooms":
		return network.NewMessage(message.TypeListRooms, nil), nil
	case "create":
		return network.NewMessage(message.TypeCreateRoom, nil), nil
	case "join":
		return room(message.TypeJoinRoom)
	case "leave":
		return room(message.TypeLeaveRoom)
	case "start":
		return room(message.TypeStartSession)
	case "serve":
		if len(fields) != 3 {
			return network.Message{}, errors.New("usage: serve <itemId> <customerId>")
		}
		item, err1 := strconv.ParseInt(fields[1], 10, 64)
		cust, err2 := strconv.ParseInt(fields[2], 10, 64)
		if err1 != nil || err2 != nil {
			return network.Message{}, errors.New("serve: ids must be numbers")
		}
		return network.NewMessage(message.TypePlayerAction, message.PlayerActionRequest{ItemID: item, CustomerID: cust}), nil
	case "top":
		limit := 0
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return network.Message{}, errors.New("top: limit must be a number")
			}
			limit = n
		}
		return network.NewMessage(message.TypeLeaderboard, message.LeaderboardRequest{Limit: limit}), nil
	}
	return network.Message{}, fmt.Errorf("unknown command %q, type help", fields[0])
}

func readLoop(conn *websocket.Conn, b *board, done chan struct{}) {
	defer close(done)
	for {
		var msg network.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("read error: %v", err)
			}
			return
		}
		if msg.Type == message.TypeStateSnapshot {
			var s message.SnapshotPayload
			if msg.Decode(&s) == nil {
				b.set(s)
			}
			continue
		}
		printServerMessage(msg)
	}
}

func printServerMessage(msg network.Message) {
	var pretty map[string]any
	if msg.Decode(&pretty) != nil || len(pretty) == 0 {
		fmt.Printf("\n[%s]\n", msg.Type)
		return
	}
	data, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Printf("\n[%s] %s\n", msg.Type, string(msg.Payload))
		return
	}
	fmt.Printf("\n[%s] %s\n", msg.Type, data)
}

func measurePing(conn *websocket.Conn, writeMu *sync.Mutex, pongs <-chan time.Time) {
	start := time.Now()
	writeMu.Lock()
	err := conn.WriteControl(websocket.PingMessage, nil, start.Add(5*time.Second))
	writeMu.Unlock()
	if err != nil {
		log.Printf("ERROR: ping: %v", err)
		return
	}
	select {
	case at := <-pongs:
		fmt.Printf("pong after %v\n", at.Sub(start))
	case <-time.After(3 * time.Second):
		fmt.Println("ping timed out")
	}
}
