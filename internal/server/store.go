package server

import (
	"sort"
	"sync"

	"github.com/KaramelBytes/surveyloom-cli/internal/pipeline"
)

// entry serializes every request touching one session, so a cleaning run
// blocks edits until it finishes.
type entry struct {
	mu      sync.Mutex
	session *pipeline.Session
}

// Store keeps sessions in memory for the lifetime of the process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*entry)}
}

func (s *Store) Put(sess *pipeline.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = &entry{session: sess}
}

func (s *Store) get(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	return e, ok
}

// With runs fn while holding the session's lock. It reports false if no
// session has that id.
func (s *Store) With(id string, fn func(*pipeline.Session)) bool {
	e, ok := s.get(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
	return true
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// IDs lists session ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
