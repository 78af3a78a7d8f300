package service

import (
	"sync"
	"time"
)

type sessionEntry struct {
	session  *plannerSession
	lastSeen time.Time
}

// sessionStore keeps planner sessions in memory with a sliding TTL.
type sessionStore struct {
	ttl     time.Duration
	now     func() time.Time
	onEvict func(*plannerSession)

	mu    sync.RWMutex
	items map[string]*sessionEntry
}

func newSessionStore(ttl time.Duration, onEvict func(*plannerSession)) *sessionStore {
	return &sessionStore{
		ttl:     ttl,
		now:     time.Now,
		onEvict: onEvict,
		items:   make(map[string]*sessionEntry),
	}
}

func (s *sessionStore) Save(session *plannerSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[session.id] = &sessionEntry{session: session, lastSeen: s.now()}
}

// Get returns a live session and refreshes its TTL.
func (s *sessionStore) Get(id string) (*plannerSession, bool) {
	s.mu.Lock()
	entry, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	now := s.now()
	if now.Sub(entry.lastSeen) > s.ttl {
		delete(s.items, id)
		s.mu.Unlock()
		s.evict(entry.session)
		return nil, false
	}
	entry.lastSeen = now
	s.mu.Unlock()
	return entry.session, true
}

// ExpiresAt reports when the session lapses if left untouched.
func (s *sessionStore) ExpiresAt(id string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if entry, ok := s.items[id]; ok {
		return entry.lastSeen.Add(s.ttl)
	}
	return time.Time{}
}

func (s *sessionStore) Delete(id string) bool {
	s.mu.Lock()
	entry, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	if ok {
		s.evict(entry.session)
	}
	return ok
}

// Sweep drops every expired session and returns how many were removed.
func (s *sessionStore) Sweep() int {
	now := s.now()
	var expired []*plannerSession
	s.mu.Lock()
	for id, entry := range s.items {
		if now.Sub(entry.lastSeen) > s.ttl {
			delete(s.items, id)
			expired = append(expired, entry.session)
		}
	}
	s.mu.Unlock()
	for _, session := range expired {
		s.evict(session)
	}
	return len(expired)
}

func (s *sessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *sessionStore) evict(session *plannerSession) {
	if s.onEvict != nil {
		s.onEvict(session)
	}
}
