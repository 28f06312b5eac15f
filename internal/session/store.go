// Package session keeps per-user intake conversation state in memory.
// A session only exists between "employee picked" and "text received";
// it is lost on restart, which simply restarts the conversation.
package session

import (
	"sync"
	"time"
)

// Session is the pending intake state for one user.
type Session struct {
	Employee  string
	UpdatedAt time.Time
}

// Store is a TTL-evicting map of user id to pending session. Entries are
// expired lazily on access, so an abandoned intake costs one map entry
// until the next lookup or sweep.
type Store struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[int64]Session
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[int64]Session),
	}
}

// Put starts (or restarts) the user's intake with the chosen employee.
func (s *Store) Put(userID int64, employee string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = Session{Employee: employee, UpdatedAt: s.now()}
}

// Get returns the user's pending session, expiring it first if stale.
func (s *Store) Get(userID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return Session{}, false
	}
	if s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl {
		delete(s.sessions, userID)
		return Session{}, false
	}
	return sess, true
}

// Delete clears the user's pending session.
func (s *Store) Delete(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// Sweep drops all expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ttl <= 0 {
		return 0
	}
	removed := 0
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
