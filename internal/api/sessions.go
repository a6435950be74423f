package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	partnerCookie     = "goyoulink_partner"
	partnerSessionTTL = 7 * 24 * time.Hour
)

type session struct {
	affiliateID string
	expires     time.Time
}

// SessionStore keeps partner sessions in memory. Sessions do not survive a
// restart; partners simply log in again.
type SessionStore struct {
	mu    sync.Mutex
	items map[string]session
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionStore creates a store whose sessions live for ttl.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = partnerSessionTTL
	}
	return &SessionStore{items: make(map[string]session), ttl: ttl, now: time.Now}
}

// Create opens a session for affiliateID and returns its token.
func (s *SessionStore) Create(affiliateID string) (string, time.Time) {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)
	exp := now.Add(s.ttl)
	s.items[token] = session{affiliateID: affiliateID, expires: exp}
	return token, exp
}

// Lookup returns the affiliate behind token if the session is still live.
func (s *SessionStore) Lookup(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.items[token]
	if !ok {
		return "", false
	}
	if !s.now().Before(sess.expires) {
		delete(s.items, token)
		return "", false
	}
	return sess.affiliateID, true
}

// Delete ends a session.
func (s *SessionStore) Delete(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, token)
}

// Len reports the number of stored sessions, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *SessionStore) sweepLocked(now time.Time) {
	for token, sess := range s.items {
		if !now.Before(sess.expires) {
			delete(s.items, token)
		}
	}
}
