package tokenizer

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/questproof/core"
)

func newSigningKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return key
}

func TestSessionTokenRoundTrip(t *testing.T) {
	tk := NewJWTTokenizer(newSigningKey(t), nil)
	now := time.Now()
	session := &core.Session{
		ID:         "sess-1",
		Wallet:     "0x0000000000000000000000000000000000000001",
		PlatformID: "demo_001",
		AgentID:    "agent_001",
		IssuedAt:   now,
		ExpiresAt:  now.Add(time.Hour),
	}

	token, err := tk.SessionToToken(session)
	require.NoError(t, err)
	assert.Greater(t, len(token), 16)

	id, err := tk.TokenToSessionID(token)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", id)
}

func TestSessionTokenRejected(t *testing.T) {
	tk := NewJWTTokenizer(newSigningKey(t), nil)
	now := time.Now()

	t.Run("expired", func(t *testing.T) {
		token, err := tk.SessionToToken(&core.Session{ID: "x", IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)})
		require.NoError(t, err)
		_, err = tk.TokenToSessionID(token)
		assert.ErrorIs(t, err, core.ErrInvalidSession)
	})

	t.Run("foreign key", func(t *testing.T) {
		other := NewJWTTokenizer(newSigningKey(t), nil)
		token, err := other.SessionToToken(&core.Session{ID: "x", IssuedAt: now, ExpiresAt: now.Add(time.Hour)})
		require.NoError(t, err)
		_, err = tk.TokenToSessionID(token)
		assert.ErrorIs(t, err, core.ErrInvalidSession)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tk.TokenToSessionID("not-a-token")
		assert.ErrorIs(t, err, core.ErrInvalidSession)
	})
}

func TestSessionTokenUsesClock(t *testing.T) {
	key := newSigningKey(t)
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	tk := NewJWTTokenizer(key, func() time.Time { return past })

	token, err := tk.SessionToToken(&core.Session{ID: "x", IssuedAt: past, ExpiresAt: past.Add(time.Hour)})
	require.NoError(t, err)

	id, err := tk.TokenToSessionID(token)
	require.NoError(t, err)
	assert.Equal(t, "x", id)

	_, err = NewJWTTokenizer(key, nil).TokenToSessionID(token)
	assert.ErrorIs(t, err, core.ErrInvalidSession)
}
