package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/questproof/adapters/store"
	"github.com/layer-3/questproof/adapters/tokenizer"
	"github.com/layer-3/questproof/adapters/wallet"
	"github.com/layer-3/questproof/core"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testWallet struct {
	keyHex  string
	Address string
}

func newTestWallet(t *testing.T) testWallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return testWallet{
		keyHex:  hex.EncodeToString(crypto.FromECDSA(key)),
		Address: crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
}

func (w testWallet) Sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := wallet.SignMessage(w.keyHex, message)
	require.NoError(t, err)
	return sig
}

type recordingPublisher struct {
	mu          sync.Mutex
	signIns     []core.Session
	logouts     []core.Session
	submissions []core.SubmissionResult
}

func (p *recordingPublisher) PublishSignIn(_ context.Context, session *core.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signIns = append(p.signIns, *session)
	return nil
}

func (p *recordingPublisher) PublishLogout(_ context.Context, session *core.Session) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts = append(p.logouts, *session)
	return nil
}

func (p *recordingPublisher) PublishSubmission(_ context.Context, result *core.SubmissionResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submissions = append(p.submissions, *result)
	return nil
}

type authFixture struct {
	clock    *fakeClock
	logger   *logrus.Logger
	hook     *test.Hook
	registry *IdentityRegistry
	sessions *SessionManager
	events   *recordingPublisher
	auth     *AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	clock := newFakeClock()
	logger, hook := test.NewNullLogger()
	registry := NewIdentityRegistry(nil, logger, clock.Now)
	sessions := NewSessionManager(store.NewMemoryStore(), tokenizer.NewJWTTokenizer(signKey, clock.Now), 0, clock.Now, logger)
	events := &recordingPublisher{}

	auth := NewAuthService(
		AuthConfig{Now: clock.Now},
		registry,
		store.NewMemoryChallengeStore(),
		sessions,
		wallet.NewEthVerifier(),
		events,
		logger,
	)

	return &authFixture{
		clock:    clock,
		logger:   logger,
		hook:     hook,
		registry: registry,
		sessions: sessions,
		events:   events,
		auth:     auth,
	}
}

// signIn runs a full challenge/verify round trip
func (f *authFixture) signIn(t *testing.T, w testWallet, platformID, agentID, alias string) *core.Session {
	t.Helper()
	ctx := context.Background()

	challenge, err := f.auth.RequestChallenge(ctx, ChallengeRequest{
		Wallet:     w.Address,
		PlatformID: platformID,
		AgentID:    agentID,
		Alias:      alias,
	})
	require.NoError(t, err)

	session, err := f.auth.VerifyChallenge(ctx, VerifyRequest{
		Wallet:     w.Address,
		PlatformID: platformID,
		AgentID:    agentID,
		Signature:  w.Sign(t, challenge.Message),
		Nonce:      challenge.Nonce,
	})
	require.NoError(t, err)
	return session
}
