package nodestore

import (
	"context"
	"sort"
	"sync"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/types"
)

// MemoryStore implements Store using an in-memory map.
// Intended for the CLI and tests; no database required.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]types.TreeNode
	seq   map[string]int
	next  int
}

// NewMemoryStore creates a new empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]types.TreeNode),
		seq:   make(map[string]int),
	}
}

func (s *MemoryStore) LoadTree(_ context.Context, treeID string) ([]types.TreeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []types.TreeNode
	for _, n := range s.nodes {
		if n.TreeID == treeID {
			matched = append(matched, n)
		}
	}
	if len(matched) == 0 {
		return nil, ErrNotFound
	}

	// Insertion order keeps the load order stable across calls.
	sort.Slice(matched, func(i, j int) bool {
		return s.seq[matched[i].ID] < s.seq[matched[j].ID]
	})
	return matched, nil
}

func (s *MemoryStore) SaveNodes(_ context.Context, nodes []types.TreeNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range Flatten(nodes) {
		if _, ok := s.seq[n.ID]; !ok {
			s.seq[n.ID] = s.next
			s.next++
		}
		s.nodes[n.ID] = n
	}
	return nil
}

func (s *MemoryStore) DeleteNodes(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.nodes, id)
		delete(s.seq, id)
	}
	return nil
}

func (s *MemoryStore) Trees(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var out []string
	for _, n := range s.nodes {
		if n.TreeID != "" && !seen[n.TreeID] {
			seen[n.TreeID] = true
			out = append(out, n.TreeID)
		}
	}
	sort.Strings(out)
	return out, nil
}
