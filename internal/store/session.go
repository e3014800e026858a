package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cloudpanel/authcore/types"
)

// DefaultSweepBatch is the number of sessions removed per write-lock hold.
const DefaultSweepBatch = 256

// SessionStore keeps login sessions in memory until they are swept.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]types.Session
	now       func() time.Time
	batchSize int
}

// NewSessionStore creates an empty store. now defaults to time.Now and
// batchSize <= 0 uses DefaultSweepBatch.
func NewSessionStore(now func() time.Time, batchSize int) *SessionStore {
	if now == nil {
		now = time.Now
	}
	if batchSize <= 0 {
		batchSize = DefaultSweepBatch
	}
	return &SessionStore{
		sessions:  make(map[string]types.Session),
		now:       now,
		batchSize: batchSize,
	}
}

// Put records a session for userID expiring ttl from now. An existing
// session with the same id is replaced.
func (s *SessionStore) Put(_ context.Context, sessionID, userID string, ttl time.Duration) (types.Session, error) {
	if sessionID == "" || userID == "" {
		return types.Session{}, fmt.Errorf("%w: session and user id are required", ErrInvalidRecord)
	}
	if ttl <= 0 {
		return types.Session{}, fmt.Errorf("%w: ttl must be positive, got %s", ErrInvalidRecord, ttl)
	}

	now := s.now()
	session := types.Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	s.sessions[sessionID] = session
	s.mu.Unlock()

	return session, nil
}

// Get returns the session with the given id. Sessions past their expiry
// are still returned until a sweep removes them; use Session.ExpiredAt.
func (s *SessionStore) Get(_ context.Context, sessionID string) (types.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return types.Session{}, ErrNotFound
	}
	return session, nil
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes every session whose expiry is before now and returns how
// many were removed. Candidates are collected under the read lock and
// deleted in batches, each under its own short write lock; an entry is
// re-checked before deletion because a Put may have replaced it.
func (s *SessionStore) Sweep(now time.Time) int {
	s.mu.RLock()
	var expired []string
	for id, session := range s.sessions {
		if session.ExpiredAt(now) {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	removed := 0
	for start := 0; start < len(expired); start += s.batchSize {
		end := min(start+s.batchSize, len(expired))

		s.mu.Lock()
		for _, id := range expired[start:end] {
			if session, ok := s.sessions[id]; ok && session.ExpiredAt(now) {
				delete(s.sessions, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}
