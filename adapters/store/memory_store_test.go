package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/questproof/core"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	got, err := s.GetSession(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	session := &core.Session{Token: "tok", Wallet: "0xabc", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.SaveSession(ctx, session))

	got, err = s.GetSession(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "0xabc", got.Wallet)

	// Stored copies are not aliased to the caller's value
	got.Wallet = "changed"
	again, _ := s.GetSession(ctx, "tok")
	assert.Equal(t, "0xabc", again.Wallet)

	require.NoError(t, s.DeleteSession(ctx, "tok"))
	require.NoError(t, s.DeleteSession(ctx, "tok"))
	got, _ = s.GetSession(ctx, "tok")
	assert.Nil(t, got)
}

func TestMemoryChallengeStore(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryChallengeStore()

	s.PutChallenge("w1", &core.Challenge{Nonce: "n1", ExpiresAt: now.Add(time.Minute)})
	s.PutChallenge("w1", &core.Challenge{Nonce: "n2", ExpiresAt: now.Add(time.Minute)})

	c, ok := s.GetChallenge("w1")
	require.True(t, ok)
	assert.Equal(t, "n2", c.Nonce, "last writer wins")

	assert.False(t, s.ConsumeChallenge("w1", "n1"))
	assert.True(t, s.ConsumeChallenge("w1", "n2"))
	assert.False(t, s.ConsumeChallenge("w1", "n2"))

	s.PutChallenge("old", &core.Challenge{Nonce: "a", ExpiresAt: now.Add(-time.Second)})
	s.PutChallenge("new", &core.Challenge{Nonce: "b", ExpiresAt: now.Add(time.Second)})
	assert.Equal(t, 1, s.SweepChallenges(now))
	_, ok = s.GetChallenge("old")
	assert.False(t, ok)
	_, ok = s.GetChallenge("new")
	assert.True(t, ok)

	s.DeleteChallenge("new")
	_, ok = s.GetChallenge("new")
	assert.False(t, ok)
}

func TestMemoryRateLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryRateLimiter(func() time.Time { return now })

	_, ok, err := l.Allow(ctx, "Q1:0xABC", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(20 * time.Second)
	wait, ok, err := l.Allow(ctx, "q1:0xabc", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "keys are case-insensitive")
	assert.Equal(t, 40*time.Second, wait)

	_, ok, _ = l.Allow(ctx, "q2:0xabc", time.Minute)
	assert.True(t, ok, "other quests are independent")

	now = now.Add(40 * time.Second)
	_, ok, _ = l.Allow(ctx, "q1:0xabc", time.Minute)
	assert.True(t, ok)
}

func TestMemoryRateLimiterConcurrent(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryRateLimiter(nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := l.Allow(ctx, "q:w", time.Minute); ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
}
