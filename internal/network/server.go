package network

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// upgrader promotes HTTP requests on /ws to websocket connections.
var upgrader = websocket.Upgrader{
	// Any origin may connect; browsers and bots alike.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Server owns the hub and the HTTP mux that exposes /ws plus any extra routes.
type Server struct {
	hub  *Hub
	mux  *http.ServeMux
	http *http.Server
}

// NewServer wires handler behind a new hub.
func NewServer(handler EventHandler) *Server {
	s := &Server{
		hub: NewHub(handler),
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("/ws", s.wsHandler)
	return s
}

// Handle adds a plain HTTP route next to /ws (health, metrics).
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler exposes the mux, mostly for httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start launches the hub goroutine. Listen calls it too.
func (s *Server) Start() {
	go s.hub.Run()
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ERROR: websocket upgrade failed: %v", err)
		return
	}

	client := newClient(conn, s.hub)
	s.hub.Enter(client)

	go client.writeLoop()
	go client.readLoop()
}

// Listen starts the hub and serves HTTP until Shutdown. It returns nil on a
// clean shutdown.
func (s *Server) Listen(address string) error {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve is Listen on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.Start()
	s.http = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Printf("[Server] websocket endpoint on ws://%s/ws", ln.Addr())
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and detaches every client.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.hub.Stop()
	return err
}
