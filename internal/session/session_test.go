package session

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DETHIERJONATHAN/2Thier-sub016/internal/render"
)

func TestManager_CreateGet(t *testing.T) {
	m := NewManager(time.Hour, time.Hour)
	s := m.Create("roof")

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, "roof", got.TreeID)
	assert.Equal(t, 1, m.Len())

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_GetExpired(t *testing.T) {
	m := NewManager(time.Minute, 0)
	s := m.Create("roof")
	s.CreatedAt = time.Now().Add(-2 * time.Minute)

	_, err := m.Get(s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, m.Len(), "expired session is dropped on lookup")
}

func TestManager_Cleanup(t *testing.T) {
	m := NewManager(0, time.Minute)
	idle := m.Create("a")
	idle.LastActiveAt = time.Now().Add(-time.Hour)
	active := m.Create("b")
	old := m.Create("c")
	old.LastActiveAt = time.Now().Add(-2 * time.Minute)

	removed := m.Cleanup()
	sort.Strings(removed)
	want := []string{idle.ID, old.ID}
	sort.Strings(want)
	assert.Equal(t, want, removed)

	_, err := m.Get(active.ID)
	assert.NoError(t, err)
}

func TestSession_TouchKeepsAlive(t *testing.T) {
	m := NewManager(0, time.Minute)
	s := m.Create("roof")
	s.LastActiveAt = time.Now().Add(-2 * time.Minute)
	s.Touch()

	_, err := m.Get(s.ID)
	assert.NoError(t, err)
}

func TestSession_ZeroTimeoutsNeverExpire(t *testing.T) {
	s := NewSession("roof")
	s.CreatedAt = time.Now().Add(-1000 * time.Hour)
	s.LastActiveAt = s.CreatedAt
	assert.False(t, s.IsExpired(0))
	assert.False(t, s.IsIdle(0))
}

func TestSession_SetRendered(t *testing.T) {
	s := NewSession("roof")
	assert.Nil(t, s.Rendered())

	first := s.SetRendered([]render.RenderedSection{{ID: "s1"}})
	second := s.SetRendered([]render.RenderedSection{{ID: "s2"}})
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)
	require.Len(t, s.Rendered(), 1)
	assert.Equal(t, "s2", s.Rendered()[0].ID)
}

func TestSession_LockSerialises(t *testing.T) {
	s := NewSession("roof")
	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Lock()
			defer s.Unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}
