package ports

import (
	"context"
	"time"

	"github.com/layer-3/questproof/core"
)

// SessionStore keeps sessions keyed by their token
type SessionStore interface {
	SaveSession(ctx context.Context, session *core.Session) error
	GetSession(ctx context.Context, token string) (*core.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// ChallengeStore keeps at most one pending challenge per wallet key
type ChallengeStore interface {
	// PutChallenge stores the challenge, replacing any pending one for the key
	PutChallenge(key string, challenge *core.Challenge)
	GetChallenge(key string) (*core.Challenge, bool)
	DeleteChallenge(key string)
	// ConsumeChallenge deletes the challenge only if it still carries nonce.
	// It reports whether this call removed it.
	ConsumeChallenge(key, nonce string) bool
	// SweepChallenges removes every challenge expired at now and returns the count
	SweepChallenges(now time.Time) int
}

// RateLimiter enforces a single attempt per key per window
type RateLimiter interface {
	// Allow records an attempt for key if none was recorded within window.
	// When the attempt is refused it returns the remaining wait.
	Allow(ctx context.Context, key string, window time.Duration) (retryAfter time.Duration, ok bool, err error)
}
