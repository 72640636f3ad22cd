package memory

import (
	"context"
	"sync"
	"time"
)

// InMemStore is the reference SessionStore: a mutex-guarded map with lazy
// TTL expiry checked on access. Intended for development and tests.
type InMemStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*session
	now      func() time.Time // for testing
}

type session struct {
	entries   [][]byte // newest first
	expiresAt time.Time
}

// NewInMemStore creates an in-memory session store with the given TTL.
func NewInMemStore(ttl time.Duration) *InMemStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemStore{
		ttl:      ttl,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Push implements SessionStore.
func (s *InMemStore) Push(ctx context.Context, sessionID string, entry []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(sessionID)
	if sess == nil {
		sess = &session{}
		s.sessions[sessionID] = sess
	}
	sess.entries = append([][]byte{entry}, sess.entries...)
	sess.expiresAt = s.now().Add(s.ttl)
	return nil
}

// Recent implements SessionStore.
func (s *InMemStore) Recent(ctx context.Context, sessionID string, limit int) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live(sessionID)
	if sess == nil || limit <= 0 {
		return nil, nil
	}
	if limit > len(sess.entries) {
		limit = len(sess.entries)
	}
	out := make([][]byte, limit)
	copy(out, sess.entries[:limit])
	return out, nil
}

// Delete implements SessionStore.
func (s *InMemStore) Delete(ctx context.Context, sessionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existed := s.live(sessionID) != nil
	delete(s.sessions, sessionID)
	return existed, nil
}

// live returns the session if present and unexpired, reaping it otherwise.
// Must hold mu.
func (s *InMemStore) live(sessionID string) *session {
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	if s.now().After(sess.expiresAt) {
		delete(s.sessions, sessionID)
		return nil
	}
	return sess
}
