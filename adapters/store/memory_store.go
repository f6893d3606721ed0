package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

// MemoryStore is an in-memory session store
type MemoryStore struct {
	sessions map[string]core.Session
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore() ports.SessionStore {
	return &MemoryStore{
		sessions: make(map[string]core.Session),
	}
}

// SaveSession stores a copy of the session under its token
func (s *MemoryStore) SaveSession(ctx context.Context, session *core.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.Token] = *session
	return nil
}

// GetSession returns the session for token, or nil when unknown
func (s *MemoryStore) GetSession(ctx context.Context, token string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

// DeleteSession removes the session for token
func (s *MemoryStore) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// MemoryChallengeStore keeps pending challenges in a map
type MemoryChallengeStore struct {
	challenges map[string]core.Challenge
	mu         sync.Mutex
}

// NewMemoryChallengeStore creates a new in-memory challenge store
func NewMemoryChallengeStore() ports.ChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[string]core.Challenge),
	}
}

func (s *MemoryChallengeStore) PutChallenge(key string, challenge *core.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[key] = *challenge
}

func (s *MemoryChallengeStore) GetChallenge(key string) (*core.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[key]
	if !ok {
		return nil, false
	}
	return &challenge, true
}

func (s *MemoryChallengeStore) DeleteChallenge(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.challenges, key)
}

func (s *MemoryChallengeStore) ConsumeChallenge(key, nonce string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[key]
	if !ok || challenge.Nonce != nonce {
		return false
	}
	delete(s.challenges, key)
	return true
}

func (s *MemoryChallengeStore) SweepChallenges(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, challenge := range s.challenges {
		if challenge.Expired(now) {
			delete(s.challenges, key)
			removed++
		}
	}
	return removed
}

// MemoryRateLimiter remembers the last accepted attempt per key
type MemoryRateLimiter struct {
	attempts map[string]time.Time
	now      func() time.Time
	mu       sync.Mutex
}

// NewMemoryRateLimiter creates a rate limiter reading time from now.
// A nil now uses time.Now.
func NewMemoryRateLimiter(now func() time.Time) ports.RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryRateLimiter{
		attempts: make(map[string]time.Time),
		now:      now,
	}
}

// Allow checks and records under one lock so concurrent callers cannot both pass
func (l *MemoryRateLimiter) Allow(ctx context.Context, key string, window time.Duration) (time.Duration, bool, error) {
	key = strings.ToLower(key)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.attempts[key]; ok {
		if elapsed := now.Sub(last); elapsed < window {
			return window - elapsed, false, nil
		}
	}
	l.attempts[key] = now

	// Drop stale keys so the map does not grow without bound
	for k, last := range l.attempts {
		if now.Sub(last) >= window {
			delete(l.attempts, k)
		}
	}
	return 0, true, nil
}
