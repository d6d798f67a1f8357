package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/dukerupert/reservations/internal/model"
)

// SessionTTL is how long an admin session stays valid after login.
const SessionTTL = 4 * time.Hour

// SessionStore holds sessions in process memory. A restart drops every
// session.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*model.Session),
		ttl:      SessionTTL,
		now:      time.Now,
	}
}

// Create generates a new session with a crypto-random token.
func (s *SessionStore) Create(isAdmin bool) (*model.Session, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	now := s.now().UTC()
	sess := &model.Session{
		Token:     hex.EncodeToString(tokenBytes),
		IsAdmin:   isAdmin,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()

	c := *sess
	return &c, nil
}

// GetByToken returns the session for the given token, or nil if expired or
// not found. Expired sessions are removed on lookup.
func (s *SessionStore) GetByToken(token string) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil
	}
	if sess.Expired(s.now()) {
		delete(s.sessions, token)
		return nil
	}
	c := *sess
	return &c
}

// Delete removes a session. Deleting an unknown token is a no-op.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// DeleteExpired drops all expired sessions and returns how many were removed.
func (s *SessionStore) DeleteExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, token)
			n++
		}
	}
	return n
}

// Clear drops every session.
func (s *SessionStore) Clear() {
	s.mu.Lock()
	clear(s.sessions)
	s.mu.Unlock()
}

// Len returns the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
