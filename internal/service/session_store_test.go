package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(ttl time.Duration) (*sessionStore, *time.Time, *[]string) {
	now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	var evicted []string
	store := newSessionStore(ttl, func(s *plannerSession) { evicted = append(evicted, s.id) })
	store.now = func() time.Time { return now }
	return store, &now, &evicted
}

func TestSessionStoreSlidingExpiry(t *testing.T) {
	store, now, evicted := newTestStore(time.Hour)
	store.Save(&plannerSession{id: "a"})

	*now = now.Add(50 * time.Minute)
	_, ok := store.Get("a")
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Hour), store.ExpiresAt("a"))

	// the read above refreshed the deadline
	*now = now.Add(50 * time.Minute)
	_, ok = store.Get("a")
	require.True(t, ok)

	*now = now.Add(61 * time.Minute)
	_, ok = store.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, *evicted)
	assert.Zero(t, store.Len())
	assert.True(t, store.ExpiresAt("a").IsZero())
}

func TestSessionStoreSweep(t *testing.T) {
	store, now, evicted := newTestStore(time.Hour)
	store.Save(&plannerSession{id: "old"})
	*now = now.Add(40 * time.Minute)
	store.Save(&plannerSession{id: "fresh"})

	*now = now.Add(30 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, []string{"old"}, *evicted)
	assert.Equal(t, 1, store.Len())
}

func TestSessionStoreDelete(t *testing.T) {
	store, _, evicted := newTestStore(time.Hour)
	store.Save(&plannerSession{id: "a"})

	assert.True(t, store.Delete("a"))
	assert.False(t, store.Delete("a"))
	assert.Equal(t, []string{"a"}, *evicted)
}
