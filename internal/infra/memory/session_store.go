package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kasboi/payecards-bot/internal/domain/model"
	"github.com/kasboi/payecards-bot/internal/domain/ports/repository"
)

var _ repository.BroadcastSessionStore = (*SessionStore)(nil)

// SessionStore keeps broadcast sessions in process memory. Sessions idle for
// longer than ttl are treated as absent and swept on access.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]model.BroadcastSession
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]model.BroadcastSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *SessionStore) Get(_ context.Context, adminID int64) (*model.BroadcastSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookup(adminID)
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Set(_ context.Context, sess *model.BroadcastSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	cp.UpdatedAt = s.now()
	s.sessions[sess.AdminID] = cp
	return nil
}

func (s *SessionStore) Delete(_ context.Context, adminID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, adminID)
	return nil
}

func (s *SessionStore) Take(_ context.Context, adminID int64) (*model.BroadcastSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookup(adminID)
	if !ok {
		return nil, nil
	}
	delete(s.sessions, adminID)
	return &sess, nil
}

// Sweep drops every expired session and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// lookup must be called with mu held.
func (s *SessionStore) lookup(adminID int64) (model.BroadcastSession, bool) {
	sess, ok := s.sessions[adminID]
	if !ok {
		return sess, false
	}
	if s.expired(sess) {
		delete(s.sessions, adminID)
		return sess, false
	}
	return sess, true
}

func (s *SessionStore) expired(sess model.BroadcastSession) bool {
	return s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl
}
