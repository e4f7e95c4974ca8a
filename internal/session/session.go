// Package session manages live form session lifecycle.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/render"
)

// ErrNotFound is returned for unknown, expired or idle sessions.
var ErrNotFound = errors.New("session: not found")

// Session holds the state of one user filling one tree. Form values live in
// a formstate.Store under the session id.
type Session struct {
	ID           string    `json:"id"`
	TreeID       string    `json:"tree_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`

	op       sync.Mutex
	mu       sync.Mutex
	rendered []render.RenderedSection
	renders  uint64
}

// NewSession creates a session on treeID.
func NewSession(treeID string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.New().String(),
		TreeID:       treeID,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Lock serialises read-modify-write operations on the session's form
// values.
func (s *Session) Lock() { s.op.Lock() }

// Unlock releases the lock taken by Lock.
func (s *Session) Unlock() { s.op.Unlock() }

// Touch updates the last activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	s.LastActiveAt = time.Now()
	s.mu.Unlock()
}

// SetRendered stores the output of the latest render pass and returns its
// sequence number.
func (s *Session) SetRendered(sections []render.RenderedSection) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rendered = sections
	s.renders++
	s.LastActiveAt = time.Now()
	return s.renders
}

// Rendered returns the latest render pass, nil before the first one.
func (s *Session) Rendered() []render.RenderedSection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendered
}

// IsExpired returns true if the session has exceeded the given max age.
func (s *Session) IsExpired(maxAge time.Duration) bool {
	return maxAge > 0 && time.Since(s.CreatedAt) > maxAge
}

// IsIdle returns true if the session has been idle longer than the timeout.
func (s *Session) IsIdle(timeout time.Duration) bool {
	s.mu.Lock()
	last := s.LastActiveAt
	s.mu.Unlock()
	return timeout > 0 && time.Since(last) > timeout
}

// Manager handles session creation, lookup, and cleanup.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxAge      time.Duration
	idleTimeout time.Duration
}

// NewManager creates a session manager with the given timeouts. Zero
// timeouts never expire.
func NewManager(maxAge, idleTimeout time.Duration) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		maxAge:      maxAge,
		idleTimeout: idleTimeout,
	}
}

// Create creates a new session on treeID and returns it.
func (m *Manager) Create(treeID string) *Session {
	s := NewSession(treeID)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.IsExpired(m.maxAge) || s.IsIdle(m.idleTimeout) {
		m.Remove(id)
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove deletes a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Cleanup removes all expired and idle sessions and returns their ids.
// Called periodically.
func (m *Manager) Cleanup() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []string
	for id, s := range m.sessions {
		if s.IsExpired(m.maxAge) || s.IsIdle(m.idleTimeout) {
			delete(m.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}
