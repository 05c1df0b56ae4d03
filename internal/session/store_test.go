package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialscope/internal/domain"
)

func TestStore_CreateGetDelete(t *testing.T) {
	s := NewStore()
	st := s.Create()
	require.NotEmpty(t, st.ID())

	got, err := s.Get(st.ID())
	require.NoError(t, err)
	assert.Same(t, st, got)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(st.ID()))
	_, err = s.Get(st.ID())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, s.Delete(st.ID()), domain.ErrSessionNotFound)
}

func TestStore_Sweep(t *testing.T) {
	now := time.Now()
	s := NewStore()
	s.now = func() time.Time { return now }

	idle := s.Create()
	active := s.Create()
	busy := s.Create()
	require.NoError(t, busy.TryStart(domain.SourceSearch, "q"))

	now = now.Add(2 * time.Hour)
	_, err := s.Get(active.ID())
	require.NoError(t, err)

	removed := s.Sweep(time.Hour)

	assert.Equal(t, []string{idle.ID()}, removed)
	assert.Equal(t, 2, s.Len())
	assert.ErrorIs(t, idle.TryStart(domain.SourceSearch, "q"), domain.ErrSessionNotFound, "swept sessions cannot start batches")
	_, err = s.Get(busy.ID())
	assert.NoError(t, err, "running sessions survive the sweep")
}
