package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/questproof/core"
	"github.com/layer-3/questproof/ports"
)

// RedisStore is a Redis implementation of the session store
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis session store
func NewRedisStore(client *redis.Client) ports.SessionStore {
	return &RedisStore{
		client: client,
		prefix: "questproof:session:",
	}
}

// SaveSession stores the session as JSON, expiring with the session itself
func (s *RedisStore) SaveSession(ctx context.Context, session *core.Session) error {
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session")
	}

	if err := s.client.Set(ctx, s.prefix+session.Token, payload, ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to save session")
	}
	return nil
}

// GetSession returns the session for token, or nil when unknown
func (s *RedisStore) GetSession(ctx context.Context, token string) (*core.Session, error) {
	payload, err := s.client.Get(ctx, s.prefix+token).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get session")
	}

	var session core.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal session")
	}
	return &session, nil
}

// DeleteSession removes the session for token
func (s *RedisStore) DeleteSession(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.prefix+token).Err(); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	return nil
}

// RedisRateLimiter shares rate-limit windows across instances
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
}

// NewRedisRateLimiter creates a Redis backed rate limiter
func NewRedisRateLimiter(client *redis.Client) ports.RateLimiter {
	return &RedisRateLimiter{
		client: client,
		prefix: "questproof:ratelimit:",
	}
}

// Allow relies on SET NX so the check and the record are one atomic command
func (l *RedisRateLimiter) Allow(ctx context.Context, key string, window time.Duration) (time.Duration, bool, error) {
	key = l.prefix + strings.ToLower(key)

	ok, err := l.client.SetNX(ctx, key, time.Now().UnixMilli(), window).Result()
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to record attempt")
	}
	if ok {
		return 0, true, nil
	}

	ttl, err := l.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, false, errors.Wrap(err, "failed to read attempt window")
	}
	if ttl < 0 {
		ttl = window
	}
	return ttl, false, nil
}
