package formstate

import (
	"context"
	"sync"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// MemoryStore implements Store using in-memory maps.
// Intended for the CLI and tests; no Redis required.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]types.FormValues
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]types.FormValues)}
}

func (s *MemoryStore) Snapshot(_ context.Context, sessionID string) (types.FormValues, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID].Clone(), nil
}

func (s *MemoryStore) SetMany(_ context.Context, sessionID string, values map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vals, ok := s.sessions[sessionID]
	if !ok {
		vals = make(types.FormValues, len(values))
		s.sessions[sessionID] = vals
	}
	for k, v := range values {
		vals[k] = v
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sessionID string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	vals := s.sessions[sessionID]
	for _, k := range keys {
		delete(vals, k)
	}
	return nil
}

func (s *MemoryStore) Drop(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
