package engine

import (
	"log"
	"sync"

	"orderup/internal/config"
)

// Manager owns the active sessions, at most one per room.
type Manager struct {
	cfg  config.Game
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session

	pending sync.WaitGroup
}

func NewManager(cfg config.Game, deps Deps) *Manager {
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Start creates, starts and launches the session of roomID. onEnd runs once,
// after the session is terminated and removed from the manager.
func (m *Manager) Start(roomID string, members []string, onEnd func(Result)) (*Session, error) {
	s, err := m.Prepare(roomID, members, onEnd)
	if err != nil {
		return nil, err
	}
	s.Launch()
	return s, nil
}

// Prepare registers the session of roomID and moves it to Running without
// sending anything or ticking. The caller must Launch it, typically after
// releasing its own locks.
func (m *Manager) Prepare(roomID string, members []string, onEnd func(Result)) (*Session, error) {
	m.mu.Lock()
	if _, ok := m.sessions[roomID]; ok {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}
	s := newSession(roomID, members, m.cfg, m.deps, &m.pending)
	s.onEnd = func(res Result) {
		m.remove(roomID, s)
		if onEnd != nil {
			onEnd(res)
		}
	}
	m.sessions[roomID] = s
	m.mu.Unlock()

	if err := s.begin(); err != nil {
		m.remove(roomID, s)
		return nil, err
	}
	return s, nil
}

func (m *Manager) remove(roomID string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[roomID] == s {
		delete(m.sessions, roomID)
	}
}

// Get returns the active session of roomID, or nil.
func (m *Manager) Get(roomID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[roomID]
}

func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// StopAll ends every active session with reason and waits for their results
// to be persisted.
func (m *Manager) StopAll(reason EndReason) {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.Stop(reason)
	}
	if len(all) > 0 {
		log.Printf("[SessionManager] stopped %d sessions", len(all))
	}
	m.Wait()
}

// Wait blocks until every pending end-of-session write has finished.
func (m *Manager) Wait() {
	m.pending.Wait()
}
