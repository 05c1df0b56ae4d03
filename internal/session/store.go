package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"trialscope/internal/domain"
)

// Store keeps live sessions in memory. Nothing survives a restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*State
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*State), now: time.Now}
}

// Create starts a new session.
func (s *Store) Create() *State {
	st := NewState(uuid.New().String())
	s.mu.Lock()
	s.sessions[st.id] = st
	s.mu.Unlock()
	return st
}

// Get returns a live session and refreshes its idle timer.
func (s *Store) Get(id string) (*State, error) {
	s.mu.RLock()
	st, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	st.touch(s.now())
	return st, nil
}

// Delete removes a session from the store. Callers end it with
// State.TryEnd first.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than ttl. Sessions with a running
// batch are kept. It returns the removed ids.
func (s *Store) Sweep(ttl time.Duration) []string {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, st := range s.sessions {
		idle, running := st.idleSince(now)
		if running || idle <= ttl {
			continue
		}
		if err := st.TryEnd(); err != nil {
			continue
		}
		delete(s.sessions, id)
		removed = append(removed, id)
	}
	if len(removed) > 0 {
		log.Info().Int("removed", len(removed)).Int("remaining", len(s.sessions)).Msg("session.Sweep: expired idle sessions")
	}
	return removed
}
