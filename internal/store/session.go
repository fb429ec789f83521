package store

import "sync"

// SessionStore tracks whether the backend holds a valid deployment-provider
// session. Token material never reaches the client.
type SessionStore struct {
	mu      sync.RWMutex
	valid   bool
	checked bool
	seq     uint64
}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

func (s *SessionStore) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.valid
}

// Checked reports whether any session answer has been applied yet.
func (s *SessionStore) Checked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checked
}

func (s *SessionStore) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return Ticket(s.seq)
}

func (s *SessionStore) Apply(t Ticket, valid bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(t) != s.seq {
		return false
	}
	s.valid = valid
	s.checked = true
	return true
}
